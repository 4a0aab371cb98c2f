// Package segment splits text into sentences and packs them into overlapping token windows.
//
// Under the default OverflowKeep policy a sentence is never cut, so text without
// sentence punctuation forms a single window however long it is: 600 unpunctuated
// tokens at window 256, overlap 32 give one window. OverflowSplit cuts such windows
// into window-sized pieces with the configured overlap, giving three windows there.
package segment

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Overflow decides what happens to a sentence longer than the window.
type Overflow string

const (
	// OverflowKeep never splits a sentence; an oversized sentence becomes an oversized window.
	OverflowKeep Overflow = "keep"
	// OverflowSplit cuts oversized windows into window-sized pieces that still overlap.
	OverflowSplit Overflow = "split"
)

// Segmenter packs sentences into windows of at most WindowSize whitespace tokens,
// carrying the last Overlap tokens of each window into the next.
type Segmenter struct {
	windowSize int
	overlap    int
	overflow   Overflow
}

// New returns a Segmenter. size must be positive and overlap in [0, size).
// An empty overflow policy means OverflowKeep.
func New(size, overlap int, overflow Overflow) (*Segmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap)
	}
	switch overflow {
	case "":
		overflow = OverflowKeep
	case OverflowKeep, OverflowSplit:
	default:
		return nil, fmt.Errorf("unknown overflow policy %q", overflow)
	}
	return &Segmenter{windowSize: size, overlap: overlap, overflow: overflow}, nil
}

// WindowSize returns the configured window size in tokens.
func (s *Segmenter) WindowSize() int { return s.windowSize }

// Overlap returns the configured overlap in tokens.
func (s *Segmenter) Overlap() int { return s.overlap }

// Windows returns the windows of text in order. Each window is its tokens joined by
// single spaces. Text with no tokens yields nothing.
func (s *Segmenter) Windows(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var cur []string
		for _, sentence := range SplitSentences(text) {
			toks := strings.Fields(sentence)
			if len(toks) == 0 {
				continue
			}
			if len(cur) > 0 && len(cur)+len(toks) > s.windowSize {
				if !yield(strings.Join(cur, " ")) {
					return
				}
				next := make([]string, 0, s.overlap+len(toks))
				next = append(next, tail(cur, s.overlap)...)
				cur = append(next, toks...)
			} else {
				cur = append(cur, toks...)
			}
			if s.overflow == OverflowSplit {
				for len(cur) > s.windowSize {
					if !yield(strings.Join(cur[:s.windowSize], " ")) {
						return
					}
					cur = slices.Clone(cur[s.windowSize-s.overlap:])
				}
			}
		}
		if len(cur) > 0 {
			yield(strings.Join(cur, " "))
		}
	}
}

// WindowSlice collects Windows(text).
func (s *Segmenter) WindowSlice(text string) []string {
	return slices.Collect(s.Windows(text))
}

// Compose joins the non-empty abstract and body with a single space.
func Compose(abstract, body string) string {
	abstract = strings.TrimSpace(abstract)
	body = strings.TrimSpace(body)
	switch {
	case abstract == "":
		return body
	case body == "":
		return abstract
	default:
		return abstract + " " + body
	}
}

// tail returns the last n tokens of toks, or all of them when there are fewer.
func tail(toks []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if n >= len(toks) {
		return toks
	}
	return toks[len(toks)-n:]
}
