// Package tagger assigns a topic cluster to text by keyword lexicon scoring.
package tagger

import (
	"strings"

	"github.com/BonelessWater/aura/internal/config"
)

// Score is the number of distinct keywords of one cluster found in a text.
type Score struct {
	Cluster string
	Hits    int
}

type lexicon struct {
	name     string
	keywords []string // lowercase, distinct, non-empty
}

// Tagger scores text against an ordered list of cluster lexicons.
// Earlier clusters win ties.
type Tagger struct {
	lexicons []lexicon
}

// New builds a Tagger from clusters, keeping their order.
func New(clusters config.Clusters) *Tagger {
	t := &Tagger{lexicons: make([]lexicon, 0, len(clusters))}
	for _, c := range clusters {
		seen := make(map[string]struct{}, len(c.Keywords))
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			kws = append(kws, kw)
		}
		t.lexicons = append(t.lexicons, lexicon{name: c.Name, keywords: kws})
	}
	return t
}

// Clusters returns the cluster names in tie-break order.
func (t *Tagger) Clusters() []string {
	names := make([]string, len(t.lexicons))
	for i, l := range t.lexicons {
		names[i] = l.name
	}
	return names
}

// Score returns each cluster's hit count for text, in cluster order.
// A keyword counts once no matter how often it occurs.
func (t *Tagger) Score(text string) []Score {
	lower := strings.ToLower(text)
	scores := make([]Score, len(t.lexicons))
	for i, l := range t.lexicons {
		hits := 0
		for _, kw := range l.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		scores[i] = Score{Cluster: l.name, Hits: hits}
	}
	return scores
}

// Tag returns the cluster with the strictly highest score. ok is false when no
// cluster scored above zero.
func (t *Tagger) Tag(text string) (cluster string, ok bool) {
	best := 0
	for _, s := range t.Score(text) {
		if s.Hits > best {
			best = s.Hits
			cluster = s.Cluster
		}
	}
	return cluster, best > 0
}
