package rbi

import (
	"regexp"
	"slices"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParamRole is how a parameter is passed.
type ParamRole string

const (
	RolePositional      ParamRole = "positional"
	RoleOptional        ParamRole = "optional"
	RoleRest            ParamRole = "rest"
	RoleKeyword         ParamRole = "keyword"
	RoleOptionalKeyword ParamRole = "optional_keyword"
	RoleKeywordRest     ParamRole = "keyword_rest"
	RoleBlock           ParamRole = "block"
)

// Param describes one parameter of a signature.
type Param struct {
	Name string    `json:"name"`
	Role ParamRole `json:"role"`
	Type string    `json:"type"`
}

// Signature is the normalized type contract declared by a sig block.
// A nil *Signature means the member has no sig at all.
type Signature struct {
	TypeParams []string `json:"type_params,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Params     []Param  `json:"params,omitempty"`
	Return     string   `json:"return,omitempty"`

	// Overloads holds further sig blocks stacked over the same definition.
	Overloads []Signature `json:"overloads,omitempty"`
}

// Equal compares two signatures field by field.
// Two absent signatures are equal; absent and present never are.
func (s *Signature) Equal(o *Signature) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	if s.Return != o.Return ||
		!slices.Equal(s.TypeParams, o.TypeParams) ||
		!slices.Equal(s.Modifiers, o.Modifiers) ||
		!slices.Equal(s.Params, o.Params) {
		return false
	}
	return slices.EqualFunc(s.Overloads, o.Overloads, func(a, b Signature) bool {
		return a.Equal(&b)
	})
}

// String renders the signature back in sig-block form, for archives and logs.
func (s *Signature) String() string {
	if s == nil {
		return ""
	}
	var parts []string
	parts = append(parts, s.Modifiers...)
	if len(s.TypeParams) > 0 {
		parts = append(parts, "type_parameters("+strings.Join(s.TypeParams, ", ")+")")
	}
	if len(s.Params) > 0 {
		ps := make([]string, 0, len(s.Params))
		for _, p := range s.Params {
			ps = append(ps, p.Name+": "+p.Type)
		}
		parts = append(parts, "params("+strings.Join(ps, ", ")+")")
	}
	switch s.Return {
	case "":
	case "void":
		parts = append(parts, "void")
	default:
		parts = append(parts, "returns("+s.Return+")")
	}
	out := "sig { " + strings.Join(parts, ".") + " }"
	for i := range s.Overloads {
		out += "; " + s.Overloads[i].String()
	}
	return out
}

// NormalizeType canonicalizes the surface text of a type expression so that
// formatting differences do not affect equality.
func NormalizeType(raw string) string {
	t := whitespaceRe.ReplaceAllString(raw, "")
	for wrappedInParens(t) {
		t = t[1 : len(t)-1]
	}
	return t
}

// wrappedInParens reports whether the outer parentheses of s match each other.
func wrappedInParens(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
