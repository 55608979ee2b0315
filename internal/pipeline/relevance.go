package pipeline

import (
	"shimcheck/internal/index"
	"shimcheck/internal/resolver"
)

// Relevant keeps the clusters an operator can act on: method clusters with
// at least one occurrence from an editable provenance, and namespace clusters
// whose editable occurrence is an empty scope. Constants and mixins are
// indexed but never reported here.
func Relevant(clusters []index.Cluster, editable map[resolver.Provenance]bool) []index.Cluster {
	var out []index.Cluster
	for _, c := range clusters {
		if actionable(c, editable) {
			out = append(out, c)
		}
	}
	return out
}

func actionable(c index.Cluster, editable map[resolver.Provenance]bool) bool {
	for _, d := range c.Occurrences {
		if d.Kind == resolver.KindConstant || d.Kind == resolver.KindMixin {
			continue
		}
		if !editable[d.Provenance] {
			continue
		}
		if d.Kind == resolver.KindNamespace && !d.EmptyScope {
			continue
		}
		return true
	}
	return false
}
