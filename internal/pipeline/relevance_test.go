package pipeline

import (
	"testing"

	"shimcheck/internal/index"
	"shimcheck/internal/resolver"

	"github.com/stretchr/testify/assert"
)

func TestRelevant(t *testing.T) {
	editable := map[resolver.Provenance]bool{resolver.LocalOverride: true, resolver.PendingReview: true}
	decl := func(kind resolver.Kind, p resolver.Provenance, empty bool) resolver.Declaration {
		return resolver.Declaration{Kind: kind, Provenance: p, EmptyScope: empty}
	}

	clusters := []index.Cluster{
		{Name: "::A#a", Occurrences: []resolver.Declaration{
			decl(resolver.KindInstanceMember, resolver.LocalOverride, false),
			decl(resolver.KindInstanceMember, resolver.GeneratedFromDiscovery, false),
		}},
		{Name: "::B#b", Occurrences: []resolver.Declaration{
			decl(resolver.KindInstanceMember, resolver.GeneratedFromDiscovery, false),
			decl(resolver.KindInstanceMember, resolver.GeneratedFromDynamicRules, false),
		}},
		{Name: "::C", Occurrences: []resolver.Declaration{
			decl(resolver.KindNamespace, resolver.LocalOverride, false),
			decl(resolver.KindNamespace, resolver.GeneratedFromDiscovery, true),
		}},
		{Name: "::D", Occurrences: []resolver.Declaration{
			decl(resolver.KindNamespace, resolver.CanonicalReference, true),
			decl(resolver.KindNamespace, resolver.PendingReview, true),
		}},
		{Name: "::E::VERSION", Occurrences: []resolver.Declaration{
			decl(resolver.KindConstant, resolver.LocalOverride, false),
			decl(resolver.KindConstant, resolver.GeneratedFromDiscovery, false),
		}},
		{Name: "::E.include(Comparable)", Occurrences: []resolver.Declaration{
			decl(resolver.KindMixin, resolver.LocalOverride, false),
			decl(resolver.KindMixin, resolver.GeneratedFromDiscovery, false),
		}},
	}

	var names []string
	for _, c := range Relevant(clusters, editable) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"::A#a", "::D"}, names)
	assert.Empty(t, Relevant(clusters, nil))
}
