package rbi

// NodeKind classifies a declaration tree node.
type NodeKind string

const (
	KindNamespace      NodeKind = "namespace"
	KindSingletonScope NodeKind = "singleton_scope"
	KindMethod         NodeKind = "method"
	KindConstant       NodeKind = "constant"
	KindMixin          NodeKind = "mixin"
)

// Node is one declaration in a document.
//
// Namespaces and singleton scopes own children; every other kind is a leaf.
// Attribute accessors are expanded into one KindMethod node per declared
// method, all sharing the statement's span.
type Node struct {
	Kind NodeKind
	Name string
	Span Span

	// Singleton marks `def self.foo` methods.
	Singleton bool
	// Mixin is include, extend or prepend for KindMixin nodes.
	Mixin string
	// Signature is only ever set on KindMethod nodes.
	Signature *Signature

	Children []*Node
	// Skipped counts children dropped because they could not be parsed.
	Skipped int
}

// Empty reports whether a scope declares nothing at all.
func (n *Node) Empty() bool {
	return len(n.Children) == 0 && n.Skipped == 0
}

// Tree is the parsed shape of one document.
type Tree struct {
	Document Document
	Root     *Node
}

// Warning is a recoverable problem found while parsing.
type Warning struct {
	Span    Span   `json:"span"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Message + " (" + w.Span.String() + ")"
}
