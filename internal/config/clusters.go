package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Cluster is one named topic lexicon.
type Cluster struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Clusters is an ordered list of topic lexicons. In YAML it is written as a mapping
// from cluster name to keyword list; document order is kept because it decides ties.
type Clusters []Cluster

// UnmarshalYAML decodes a mapping node pair by pair so the order of keys survives.
func (c *Clusters) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("clusters: expected a mapping of name to keywords, got line %d", value.Line)
	}
	out := make(Clusters, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var name string
		if err := keyNode.Decode(&name); err != nil {
			return fmt.Errorf("clusters: line %d: %w", keyNode.Line, err)
		}
		var keywords []string
		if err := valNode.Decode(&keywords); err != nil {
			return fmt.Errorf("clusters: %s: %w", name, err)
		}
		out = append(out, Cluster{Name: name, Keywords: keywords})
	}
	*c = out
	return nil
}

// MarshalYAML writes the clusters back as an ordered mapping.
func (c Clusters) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, cl := range c {
		var val yaml.Node
		if err := val.Encode(cl.Keywords); err != nil {
			return nil, fmt.Errorf("clusters: %s: %w", cl.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: cl.Name},
			&val,
		)
	}
	return node, nil
}

// Validate rejects empty or duplicate cluster names.
func (c Clusters) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, cl := range c {
		if cl.Name == "" {
			return fmt.Errorf("clusters: empty cluster name")
		}
		if _, ok := seen[cl.Name]; ok {
			return fmt.Errorf("clusters: duplicate cluster %q", cl.Name)
		}
		seen[cl.Name] = struct{}{}
	}
	return nil
}

// Names returns the cluster names in order.
func (c Clusters) Names() []string {
	names := make([]string, len(c))
	for i, cl := range c {
		names[i] = cl.Name
	}
	return names
}
