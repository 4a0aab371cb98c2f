package article

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// node is a parsed element. text is the character data before the first child;
// tail is the character data after this element's end tag, up to the next sibling.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	tail     string
	children []*node
}

// parseTree decodes markup into a node tree keyed by local names, so prefixed and
// namespaced documents look the same as plain ones.
func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, fmt.Errorf("%w: text outside root element", ErrMalformed)
				}
				continue
			}
			top := stack[len(stack)-1]
			if len(top.children) == 0 {
				top.text += string(t)
			} else {
				top.children[len(top.children)-1].tail += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unclosed element <%s>", ErrMalformed, stack[len(stack)-1].name)
	}
	return root, nil
}

// walk visits n and its descendants in document order until fn returns false.
func (n *node) walk(fn func(*node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// find returns the first element named name at or below n.
func (n *node) find(name string) *node {
	var found *node
	n.walk(func(x *node) bool {
		if x.name == name {
			found = x
			return false
		}
		return true
	})
	return found
}

// findAll returns every element named name at or below n, in document order.
func (n *node) findAll(name string) []*node {
	var out []*node
	n.walk(func(x *node) bool {
		if x.name == name {
			out = append(out, x)
		}
		return true
	})
	return out
}

// innerText concatenates the element's text with that of all descendants and
// their tails, without separators. The element's own tail is not included.
func (n *node) innerText() string {
	var b strings.Builder
	n.writeInner(&b)
	return b.String()
}

func (n *node) writeInner(b *strings.Builder) {
	b.WriteString(n.text)
	for _, c := range n.children {
		c.writeInner(b)
		b.WriteString(c.tail)
	}
}

// fragments returns the same pieces innerText joins, one per text run.
func (n *node) fragments() []string {
	var out []string
	var collect func(*node)
	collect = func(x *node) {
		if x.text != "" {
			out = append(out, x.text)
		}
		for _, c := range x.children {
			collect(c)
			if c.tail != "" {
				out = append(out, c.tail)
			}
		}
	}
	collect(n)
	return out
}
