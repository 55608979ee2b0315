package rbi

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

// Parser turns RBI source into declaration trees.
//
// It never fails on malformed input: every statement it does not understand
// becomes a Warning and is skipped, and its siblings are still parsed.
type Parser struct {
	lang *sitter.Language
}

// NewParser creates a parser backed by the tree-sitter Ruby grammar.
func NewParser() *Parser {
	return &Parser{lang: ruby.GetLanguage()}
}

// ParseFile reads and parses a single RBI file.
func (p *Parser) ParseFile(ctx context.Context, path string, doc Document) (*Tree, []Warning, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return p.Parse(ctx, src, doc)
}

// Parse builds the declaration tree of src. The returned error is only set
// when ctx is cancelled.
func (p *Parser) Parse(ctx context.Context, src []byte, doc Document) (*Tree, []Warning, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(p.lang)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", doc.Path, err)
	}

	w := &walker{src: src, doc: doc}
	rootNode := tree.RootNode()
	root := &Node{Kind: KindNamespace, Span: w.span(rootNode)}
	if rootNode.Type() == "ERROR" {
		w.scope(root, []*sitter.Node{rootNode})
	} else {
		w.scope(root, bodyOf(rootNode))
	}

	return &Tree{Document: doc, Root: root}, w.warnings, nil
}

var (
	attrKinds = map[string]bool{
		"attr_reader":   true,
		"attr_writer":   true,
		"attr_accessor": true,
	}
	mixinKinds = map[string]bool{
		"include": true,
		"extend":  true,
		"prepend": true,
	}
	visibilityKinds = map[string]bool{
		"private":              true,
		"protected":            true,
		"public":               true,
		"module_function":      true,
		"private_class_method": true,
	}
	// blockHelpers are calls whose block carries no declarations.
	blockHelpers = map[string]bool{
		"requires_ancestor": true,
	}
)

type walker struct {
	src      []byte
	doc      Document
	warnings []Warning
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) span(n *sitter.Node) Span {
	start, end := n.StartPoint(), n.EndPoint()
	return Span{
		Document: w.doc,
		Start:    Position{Line: int(start.Row) + 1, Column: int(start.Column)},
		End:      Position{Line: int(end.Row) + 1, Column: int(end.Column)},
	}
}

func (w *walker) warn(scope *Node, n *sitter.Node, format string, args ...any) {
	w.warnings = append(w.warnings, Warning{
		Span:    w.span(n),
		Message: fmt.Sprintf(format, args...),
	})
	scope.Skipped++
}

// scope fills owner with the declarations found in stmts.
// Sig blocks are buffered until the method or attribute they describe.
func (w *walker) scope(owner *Node, stmts []*sitter.Node) {
	var sigs []*sitter.Node
	for _, st := range stmts {
		switch st.Type() {
		case "comment":
			continue
		case "class", "module":
			w.dropSigs(owner, &sigs)
			w.namespace(owner, st)
		case "singleton_class":
			w.dropSigs(owner, &sigs)
			child := &Node{Kind: KindSingletonScope, Name: "<< " + w.text(st.ChildByFieldName("value")), Span: w.span(st)}
			w.scope(child, bodyOf(st))
			owner.Children = append(owner.Children, child)
		case "method", "singleton_method":
			owner.Children = append(owner.Children, w.method(owner, st, st, sigs))
			sigs = nil
		case "call":
			w.call(owner, st, &sigs)
		case "identifier":
			// Bare helpers such as `private` or `abstract!`.
		case "assignment":
			w.dropSigs(owner, &sigs)
			w.assignment(owner, st)
		case "ERROR":
			w.dropSigs(owner, &sigs)
			w.recoverError(owner, st)
		default:
			w.warn(owner, st, "Unsupported node type `%s`", st.Type())
		}
	}
	w.dropSigs(owner, &sigs)
}

func (w *walker) dropSigs(owner *Node, sigs *[]*sitter.Node) {
	for _, s := range *sigs {
		w.warn(owner, s, "Signature is not attached to a method definition")
	}
	*sigs = nil
}

func (w *walker) namespace(owner *Node, st *sitter.Node) {
	name := st.ChildByFieldName("name")
	if name == nil {
		w.warn(owner, st, "Unsupported node type `%s`", st.Type())
		return
	}
	ns := &Node{Kind: KindNamespace, Name: w.text(name), Span: w.span(st)}
	w.scope(ns, bodyOf(st))
	owner.Children = append(owner.Children, ns)
}

// method builds a method node from def; at is the statement whose span is
// reported (the def itself, or a visibility call wrapping it). A def with a
// syntax error keeps its name but not its parameters.
func (w *walker) method(owner *Node, def, at *sitter.Node, sigs []*sitter.Node) *Node {
	var params []Param
	if def.HasError() {
		bad := firstError(def)
		near := excerpt(w.text(bad))
		if near == "" {
			near = excerpt(w.text(def))
		}
		w.warn(owner, bad, "Syntax error near `%s`", near)
	} else {
		params = w.methodParams(def.ChildByFieldName("parameters"))
	}
	return &Node{
		Kind:      KindMethod,
		Name:      w.text(def.ChildByFieldName("name")),
		Span:      w.span(at),
		Singleton: def.Type() == "singleton_method",
		Signature: w.signature(sigs, params, true),
	}
}

// recoverError keeps what tree-sitter still recognized inside an ERROR node.
// An ERROR opened by class or module keeps its namespace. The first
// construct that cannot be classified is reported; when there is none the
// ERROR itself is.
func (w *walker) recoverError(owner *Node, n *sitter.Node) {
	before := len(w.warnings)
	children := namedChildren(n)
	target := owner
	if kw := n.Child(0); kw != nil && (kw.Type() == "class" || kw.Type() == "module") &&
		len(children) > 0 && (children[0].Type() == "constant" || children[0].Type() == "scope_resolution") {
		target = &Node{Kind: KindNamespace, Name: w.text(children[0]), Span: w.span(n)}
		owner.Children = append(owner.Children, target)
		children = children[1:]
	}

	stmts := w.salvage(target, children, false)
	if len(w.warnings) == before {
		w.warn(target, n, "Syntax error near `%s`", excerpt(w.text(n)))
	}
	w.scope(target, stmts)
}

// salvage flattens the declarations out of nodes, descending through
// constructs it cannot classify. Only the outermost of those is reported.
func (w *walker) salvage(owner *Node, nodes []*sitter.Node, quiet bool) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range nodes {
		switch c.Type() {
		case "class", "module", "singleton_class", "method", "singleton_method", "call", "assignment", "ERROR":
			out = append(out, c)
		case "identifier", "constant", "scope_resolution", "superclass":
		case "body_statement", "block_body", "then", "else", "do":
			out = append(out, w.salvage(owner, namedChildren(c), quiet)...)
		default:
			if !quiet {
				w.warn(owner, c, "Unsupported node type `%s`", c.Type())
			}
			out = append(out, w.salvage(owner, namedChildren(c), true)...)
		}
	}
	return out
}

// firstError returns the first ERROR or MISSING node under n, or n.
func firstError(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.IsError() || c.IsMissing() {
			return c
		}
		if c.HasError() {
			return firstError(c)
		}
	}
	return n
}

func (w *walker) call(owner *Node, st *sitter.Node, sigs *[]*sitter.Node) {
	name := w.text(st.ChildByFieldName("method"))
	block := st.ChildByFieldName("block")
	args := namedChildren(st.ChildByFieldName("arguments"))

	switch {
	case name == "sig":
		*sigs = append(*sigs, st)
	case block != nil && !blockHelpers[name]:
		w.warn(owner, st, "Unsupported block node type `%s`", name)
	case attrKinds[name]:
		w.attr(owner, st, name, args, *sigs)
		*sigs = nil
	case mixinKinds[name]:
		w.dropSigs(owner, sigs)
		for _, a := range args {
			owner.Children = append(owner.Children, &Node{
				Kind:  KindMixin,
				Name:  w.text(a),
				Mixin: name,
				Span:  w.span(st),
			})
		}
	case visibilityKinds[name] && len(args) > 0:
		for _, a := range args {
			switch a.Type() {
			case "method", "singleton_method":
				owner.Children = append(owner.Children, w.method(owner, a, st, *sigs))
				*sigs = nil
			case "call":
				w.call(owner, a, sigs)
			}
		}
	default:
		// Any other send (abstract!, mixes_in_class_methods, const, ...)
		// declares nothing we index.
	}
}

func (w *walker) attr(owner *Node, st *sitter.Node, kind string, args []*sitter.Node, sigs []*sitter.Node) {
	sig := w.signature(sigs, nil, false)
	for _, a := range args {
		if a.Type() != "simple_symbol" && a.Type() != "string" {
			continue
		}
		name := strings.Trim(w.text(a), `:"'`)
		if kind != "attr_writer" {
			owner.Children = append(owner.Children, &Node{Kind: KindMethod, Name: name, Span: w.span(st), Signature: sig})
		}
		if kind != "attr_reader" {
			owner.Children = append(owner.Children, &Node{Kind: KindMethod, Name: name + "=", Span: w.span(st), Signature: sig})
		}
	}
}

func (w *walker) assignment(owner *Node, st *sitter.Node) {
	left := st.ChildByFieldName("left")
	if left == nil || (left.Type() != "constant" && left.Type() != "scope_resolution") {
		w.warn(owner, st, "Unsupported node type `%s`", st.Type())
		return
	}
	owner.Children = append(owner.Children, &Node{Kind: KindConstant, Name: w.text(left), Span: w.span(st)})
}

// bodyOf returns the statements of a program, class, module, singleton
// class or block, whichever way the grammar nests them.
func bodyOf(n *sitter.Node) []*sitter.Node {
	var header []*sitter.Node
	for _, field := range []string{"name", "superclass", "value", "parameters"} {
		if c := n.ChildByFieldName(field); c != nil {
			header = append(header, c)
		}
	}

	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if isOneOf(c, header) {
			continue
		}
		switch c.Type() {
		case "body_statement", "block_body":
			out = append(out, bodyOf(c)...)
		case "superclass", "block_parameters":
		default:
			out = append(out, c)
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isOneOf(n *sitter.Node, set []*sitter.Node) bool {
	for _, s := range set {
		if n.StartByte() == s.StartByte() && n.EndByte() == s.EndByte() && n.Type() == s.Type() {
			return true
		}
	}
	return false
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 30 {
		s = s[:30] + "..."
	}
	return s
}
