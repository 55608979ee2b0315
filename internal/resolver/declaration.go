package resolver

import "shimcheck/internal/rbi"

// Kind is the naming axis a declaration lives on.
type Kind string

const (
	KindNamespace       Kind = "namespace"
	KindInstanceMember  Kind = "instance_member"
	KindTypeLevelMember Kind = "type_level_member"
	KindConstant        Kind = "constant"
	KindMixin           Kind = "mixin"
)

// Provenance is the pipeline that produced a document group.
type Provenance string

const (
	LocalOverride             Provenance = "local_override"
	PendingReview             Provenance = "pending_review"
	GeneratedFromDiscovery    Provenance = "generated_from_discovery"
	GeneratedFromDynamicRules Provenance = "generated_from_dynamic_rules"
	GeneratedFromAnnotation   Provenance = "generated_from_annotation"
	CanonicalReference        Provenance = "canonical_reference"
)

// Rank orders declarations for reporting: group order, then document order
// inside the group, then declaration order inside the document.
type Rank struct {
	Group    int `json:"group"`
	Document int `json:"document"`
	Position int `json:"position"`
}

// Less reports whether r sorts before o.
func (r Rank) Less(o Rank) bool {
	if r.Group != o.Group {
		return r.Group < o.Group
	}
	if r.Document != o.Document {
		return r.Document < o.Document
	}
	return r.Position < o.Position
}

// Origin is where a tree was loaded from.
type Origin struct {
	Provenance Provenance
	Group      int
	Document   int
}

// Declaration is one occurrence of a named symbol in one document.
type Declaration struct {
	QualifiedName string         `json:"qualified_name"`
	Kind          Kind           `json:"kind"`
	Span          rbi.Span       `json:"span"`
	Signature     *rbi.Signature `json:"signature,omitempty"`
	Provenance    Provenance     `json:"provenance"`
	Rank          Rank           `json:"rank"`

	// EmptyScope is set on namespace occurrences that declare nothing.
	EmptyScope bool `json:"empty_scope,omitempty"`
}

// HasSignature reports whether the declaration carries a sig.
func (d Declaration) HasSignature() bool {
	return d.Signature != nil
}
