package rbi

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// signature builds the Signature described by the sig calls preceding a
// member. fromDef tells whether params come from a def parameter list;
// attribute accessors have none and take parameter order from the sig.
// Returns nil when there are no sigs.
func (w *walker) signature(sigs []*sitter.Node, params []Param, fromDef bool) *Signature {
	if len(sigs) == 0 {
		return nil
	}
	first := w.sig(sigs[0], params, fromDef)
	for _, s := range sigs[1:] {
		first.Overloads = append(first.Overloads, *w.sig(s, params, fromDef))
	}
	return first
}

// sigTypes collects params(...) entries in declaration order.
type sigTypes struct {
	order []string
	types map[string]string
}

func (w *walker) sig(call *sitter.Node, params []Param, fromDef bool) *Signature {
	s := &Signature{}
	st := &sigTypes{types: map[string]string{}}

	// sig(:final)
	for _, a := range namedChildren(call.ChildByFieldName("arguments")) {
		s.Modifiers = append(s.Modifiers, strings.TrimPrefix(w.text(a), ":"))
	}
	if block := call.ChildByFieldName("block"); block != nil {
		for _, stmt := range bodyOf(block) {
			w.sigChain(s, st, stmt)
		}
	}

	s.Params = mergeParams(params, st, fromDef)
	return s
}

// sigChain walks a builder chain such as override.params(x: T).returns(U)
// from left to right.
func (w *walker) sigChain(s *Signature, st *sigTypes, n *sitter.Node) {
	switch n.Type() {
	case "identifier":
		w.sigCall(s, st, w.text(n), nil)
	case "call":
		if r := n.ChildByFieldName("receiver"); r != nil {
			w.sigChain(s, st, r)
		}
		w.sigCall(s, st, w.text(n.ChildByFieldName("method")), namedChildren(n.ChildByFieldName("arguments")))
	default:
		s.Modifiers = append(s.Modifiers, NormalizeType(w.text(n)))
	}
}

func (w *walker) sigCall(s *Signature, st *sigTypes, name string, args []*sitter.Node) {
	switch name {
	case "params":
		for _, a := range args {
			if a.Type() != "pair" {
				continue
			}
			key := strings.Trim(w.text(a.ChildByFieldName("key")), ": ")
			if _, seen := st.types[key]; !seen {
				st.order = append(st.order, key)
			}
			st.types[key] = NormalizeType(w.text(a.ChildByFieldName("value")))
		}
	case "returns":
		s.Return = w.joinTypes(args)
	case "void":
		s.Return = "void"
	case "type_parameters":
		for _, a := range args {
			s.TypeParams = append(s.TypeParams, strings.TrimPrefix(w.text(a), ":"))
		}
	case "checked", "on_failure":
		// Runtime checking options do not change the contract.
	default:
		if len(args) == 0 {
			s.Modifiers = append(s.Modifiers, name)
			return
		}
		s.Modifiers = append(s.Modifiers, name+"("+w.joinTypes(args)+")")
	}
}

func (w *walker) joinTypes(args []*sitter.Node) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, NormalizeType(w.text(a)))
	}
	return strings.Join(parts, ",")
}

// mergeParams types the def's parameters from the sig. Sig entries without a
// matching def parameter are appended positionally in sig order.
func mergeParams(params []Param, st *sigTypes, fromDef bool) []Param {
	out := make([]Param, 0, len(params)+len(st.order))
	used := map[string]bool{}
	if fromDef {
		for _, p := range params {
			p.Type = st.types[p.Name]
			used[p.Name] = true
			out = append(out, p)
		}
	}
	for _, name := range st.order {
		if used[name] {
			continue
		}
		out = append(out, Param{Name: name, Role: RolePositional, Type: st.types[name]})
	}
	return out
}

func (w *walker) methodParams(list *sitter.Node) []Param {
	var out []Param
	for _, c := range namedChildren(list) {
		name := w.text(c.ChildByFieldName("name"))
		switch c.Type() {
		case "identifier":
			out = append(out, Param{Name: w.text(c), Role: RolePositional})
		case "optional_parameter":
			out = append(out, Param{Name: name, Role: RoleOptional})
		case "splat_parameter":
			out = append(out, Param{Name: orDefault(name, "*"), Role: RoleRest})
		case "hash_splat_parameter":
			out = append(out, Param{Name: orDefault(name, "**"), Role: RoleKeywordRest})
		case "block_parameter":
			out = append(out, Param{Name: orDefault(name, "&"), Role: RoleBlock})
		case "keyword_parameter":
			role := RoleKeyword
			if c.ChildByFieldName("value") != nil {
				role = RoleOptionalKeyword
			}
			out = append(out, Param{Name: name, Role: role})
		case "forward_parameter":
			out = append(out, Param{Name: "...", Role: RoleRest})
		default:
			out = append(out, Param{Name: w.text(c), Role: RolePositional})
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
