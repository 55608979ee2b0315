package resolver

import (
	"strings"

	"shimcheck/internal/rbi"
)

const (
	separator      = "::"
	instanceMarker = "#"
)

// Resolve flattens a declaration tree into declarations named by their
// position in the tree. It keeps no state between calls.
func Resolve(tree *rbi.Tree, origin Origin) []Declaration {
	if tree == nil || tree.Root == nil {
		return nil
	}
	r := &resolution{origin: origin}
	r.walk(tree.Root, "", false)
	return r.out
}

// NamespaceName qualifies a namespace written as name inside owner.
// Names written with a leading separator are already absolute.
func NamespaceName(owner, name string) string {
	if strings.HasPrefix(name, separator) {
		return name
	}
	return owner + separator + name
}

// InstanceMemberName names an instance method of owner.
func InstanceMemberName(owner, name string) string {
	return owner + instanceMarker + name
}

// TypeLevelName names a singleton method or constant of owner. It shares
// the namespace axis.
func TypeLevelName(owner, name string) string {
	return owner + separator + name
}

// MixinName names an include, extend or prepend of module into owner.
func MixinName(owner, mixin, module string) string {
	return owner + "." + mixin + "(" + module + ")"
}

type resolution struct {
	origin   Origin
	position int
	out      []Declaration
}

func (r *resolution) walk(scope *rbi.Node, owner string, singleton bool) {
	for _, n := range scope.Children {
		switch n.Kind {
		case rbi.KindNamespace:
			name := NamespaceName(owner, n.Name)
			r.add(n, name, KindNamespace)
			r.walk(n, name, false)
		case rbi.KindSingletonScope:
			r.walk(n, owner, true)
		case rbi.KindMethod:
			if n.Singleton || singleton {
				r.add(n, TypeLevelName(owner, n.Name), KindTypeLevelMember)
			} else {
				r.add(n, InstanceMemberName(owner, n.Name), KindInstanceMember)
			}
		case rbi.KindConstant:
			r.add(n, TypeLevelName(owner, n.Name), KindConstant)
		case rbi.KindMixin:
			r.add(n, MixinName(owner, n.Mixin, n.Name), KindMixin)
		}
	}
}

func (r *resolution) add(n *rbi.Node, name string, kind Kind) {
	d := Declaration{
		QualifiedName: name,
		Kind:          kind,
		Span:          n.Span,
		Signature:     n.Signature,
		Provenance:    r.origin.Provenance,
		Rank: Rank{
			Group:    r.origin.Group,
			Document: r.origin.Document,
			Position: r.position,
		},
	}
	if kind == KindNamespace {
		d.EmptyScope = n.Empty()
	}
	r.position++
	r.out = append(r.out, d)
}
