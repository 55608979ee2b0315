package rbi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*Tree, []Warning) {
	t.Helper()
	tree, warnings, err := NewParser().Parse(context.Background(), []byte(src), Document{Path: "sorbet/rbi/shims/foo.rbi"})
	require.NoError(t, err)
	require.NotNil(t, tree)
	return tree, warnings
}

func TestParser_Namespaces(t *testing.T) {
	tree, warnings := parse(t, `class Foo
  class Baz; end
end

module Bar; end
class Bar; end
class ::Qux::Quux < Object; end
`)
	assert.Empty(t, warnings)
	require.Len(t, tree.Root.Children, 4)

	foo := tree.Root.Children[0]
	assert.Equal(t, KindNamespace, foo.Kind)
	assert.Equal(t, "Foo", foo.Name)
	assert.Equal(t, "sorbet/rbi/shims/foo.rbi:1:0-3:3", foo.Span.String())
	assert.False(t, foo.Empty())

	require.Len(t, foo.Children, 1)
	baz := foo.Children[0]
	assert.Equal(t, "Baz", baz.Name)
	assert.Equal(t, "sorbet/rbi/shims/foo.rbi:2:2-2:16", baz.Span.String())
	assert.True(t, baz.Empty())

	assert.Equal(t, "Bar", tree.Root.Children[1].Name)
	assert.Equal(t, "sorbet/rbi/shims/foo.rbi:5:0-5:15", tree.Root.Children[1].Span.String())
	assert.Equal(t, "Bar", tree.Root.Children[2].Name)
	assert.Equal(t, "::Qux::Quux", tree.Root.Children[3].Name)
}

func TestParser_Members(t *testing.T) {
	tree, warnings := parse(t, `class Foo
  attr_reader :foo, :bar
  attr_writer :baz
  attr_accessor :qux
  def foo; end
  def self.build(x); end
  private def secret; end

  class << self
    def create; end
  end

  include Comparable
  extend T::Sig, T::Helpers
  VERSION = "1.0"
  abstract!
  private
end
`)
	assert.Empty(t, warnings)
	require.Len(t, tree.Root.Children, 1)
	foo := tree.Root.Children[0]

	var names []string
	for _, c := range foo.Children {
		names = append(names, string(c.Kind)+":"+c.Name)
	}
	assert.Equal(t, []string{
		"method:foo",
		"method:bar",
		"method:baz=",
		"method:qux",
		"method:qux=",
		"method:foo",
		"method:build",
		"method:secret",
		"singleton_scope:<< self",
		"mixin:Comparable",
		"mixin:T::Sig",
		"mixin:T::Helpers",
		"constant:VERSION",
	}, names)

	t.Run("Accessors share the statement span", func(t *testing.T) {
		assert.Equal(t, "sorbet/rbi/shims/foo.rbi:2:2-2:24", foo.Children[0].Span.String())
		assert.Equal(t, "sorbet/rbi/shims/foo.rbi:2:2-2:24", foo.Children[1].Span.String())
		assert.Equal(t, foo.Children[3].Span, foo.Children[4].Span)
	})

	t.Run("Methods", func(t *testing.T) {
		assert.Equal(t, "sorbet/rbi/shims/foo.rbi:5:2-5:14", foo.Children[5].Span.String())
		assert.False(t, foo.Children[5].Singleton)
		assert.True(t, foo.Children[6].Singleton)
		assert.Equal(t, "sorbet/rbi/shims/foo.rbi:7:2-7:25", foo.Children[7].Span.String())
	})

	t.Run("Singleton scope", func(t *testing.T) {
		scope := foo.Children[8]
		require.Len(t, scope.Children, 1)
		assert.Equal(t, "create", scope.Children[0].Name)
	})

	t.Run("Mixins", func(t *testing.T) {
		assert.Equal(t, "include", foo.Children[9].Mixin)
		assert.Equal(t, "extend", foo.Children[10].Mixin)
		assert.Equal(t, "extend", foo.Children[11].Mixin)
	})
}

func TestParser_PrivateClassMethod(t *testing.T) {
	tree, warnings := parse(t, `class Foo
  def a; end
  private_class_method def self.x; end
  def z; end
end
`)
	assert.Empty(t, warnings)
	foo := tree.Root.Children[0]
	require.Len(t, foo.Children, 3)
	x := foo.Children[1]
	assert.Equal(t, "x", x.Name)
	assert.True(t, x.Singleton)
	assert.Equal(t, "sorbet/rbi/shims/foo.rbi:3:2-3:38", x.Span.String())
}

func TestParser_Signatures(t *testing.T) {
	tree, warnings := parse(t, `class Foo
  sig { params(x: Integer, y: String).returns(String) }
  def foo(x, y); end

  def bar; end

  sig { void }
  def baz; end

  sig { override.params(opts: T::Hash[Symbol,  T.untyped], blk: T.proc.void).returns(T.nilable( String )) }
  def qux(*rest, key: nil, **opts, &blk); end

  sig { returns(Integer) }
  attr_reader :count

  sig { params(x: Integer).returns(Integer) }
  sig { params(x: String).returns(String) }
  def convert(x); end
end
`)
	assert.Empty(t, warnings)
	foo := tree.Root.Children[0]
	require.Len(t, foo.Children, 6)

	t.Run("Positional params", func(t *testing.T) {
		sig := foo.Children[0].Signature
		require.NotNil(t, sig)
		assert.Equal(t, []Param{
			{Name: "x", Role: RolePositional, Type: "Integer"},
			{Name: "y", Role: RolePositional, Type: "String"},
		}, sig.Params)
		assert.Equal(t, "String", sig.Return)
		assert.Equal(t, "sorbet/rbi/shims/foo.rbi:3:2-3:20", foo.Children[0].Span.String())
	})

	t.Run("Absent signature", func(t *testing.T) {
		assert.Nil(t, foo.Children[1].Signature)
	})

	t.Run("Void", func(t *testing.T) {
		sig := foo.Children[2].Signature
		require.NotNil(t, sig)
		assert.Equal(t, "void", sig.Return)
		assert.Empty(t, sig.Params)
	})

	t.Run("Roles and normalization", func(t *testing.T) {
		sig := foo.Children[3].Signature
		require.NotNil(t, sig)
		assert.Equal(t, []string{"override"}, sig.Modifiers)
		assert.Equal(t, []Param{
			{Name: "rest", Role: RoleRest},
			{Name: "key", Role: RoleOptionalKeyword},
			{Name: "opts", Role: RoleKeywordRest, Type: "T::Hash[Symbol,T.untyped]"},
			{Name: "blk", Role: RoleBlock, Type: "T.proc.void"},
		}, sig.Params)
		assert.Equal(t, "T.nilable(String)", sig.Return)
	})

	t.Run("Attribute", func(t *testing.T) {
		sig := foo.Children[4].Signature
		require.NotNil(t, sig)
		assert.Equal(t, "Integer", sig.Return)
	})

	t.Run("Overloads", func(t *testing.T) {
		sig := foo.Children[5].Signature
		require.NotNil(t, sig)
		assert.Equal(t, "Integer", sig.Return)
		require.Len(t, sig.Overloads, 1)
		assert.Equal(t, "String", sig.Overloads[0].Return)
	})
}

func TestParser_Warnings(t *testing.T) {
	t.Run("Unsupported block keeps siblings", func(t *testing.T) {
		tree, warnings := parse(t, `class Foo
  foo { bar }
  def baz; end
end
`)
		require.Len(t, warnings, 1)
		assert.Equal(t, "Unsupported block node type `foo`", warnings[0].Message)
		assert.Equal(t, "Unsupported block node type `foo` (sorbet/rbi/shims/foo.rbi:2:2-2:13)", warnings[0].String())

		foo := tree.Root.Children[0]
		require.Len(t, foo.Children, 1)
		assert.Equal(t, "baz", foo.Children[0].Name)
		assert.False(t, foo.Empty())
	})

	t.Run("Unsupported statement", func(t *testing.T) {
		_, warnings := parse(t, `class Foo
  if something
  end
end
`)
		require.Len(t, warnings, 1)
		assert.Equal(t, "Unsupported node type `if`", warnings[0].Message)
	})

	t.Run("Syntax error keeps recoverable members", func(t *testing.T) {
		tree, warnings := parse(t, "class Foo\n  if x\n  def bar; end\nend\n")
		require.Len(t, warnings, 1)
		assert.Equal(t, "Unsupported node type `if`", warnings[0].Message)
		assert.Equal(t, 2, warnings[0].Span.Start.Line)

		require.Len(t, tree.Root.Children, 1)
		foo := tree.Root.Children[0]
		assert.Equal(t, "Foo", foo.Name)
		require.Len(t, foo.Children, 1)
		assert.Equal(t, "bar", foo.Children[0].Name)
		assert.False(t, foo.Empty())
	})

	t.Run("Syntax error inside a def", func(t *testing.T) {
		tree, warnings := parse(t, "class Foo\n  def foo(x:: Integer); end\nend\n")
		require.Len(t, warnings, 1)
		assert.True(t, strings.HasPrefix(warnings[0].Message, "Syntax error near `"), warnings[0].Message)
		assert.Equal(t, 2, warnings[0].Span.Start.Line)

		foo := tree.Root.Children[0]
		require.Len(t, foo.Children, 1)
		assert.Equal(t, "foo", foo.Children[0].Name)
		assert.Nil(t, foo.Children[0].Signature)
	})

	t.Run("Dangling sig", func(t *testing.T) {
		_, warnings := parse(t, `class Foo
  sig { void }
end
`)
		require.Len(t, warnings, 1)
		assert.Equal(t, "Signature is not attached to a method definition", warnings[0].Message)
	})
}

func TestParser_Deterministic(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "sample.rbi"))
	require.NoError(t, err)

	p := NewParser()
	doc := Document{Path: "testdata/sample.rbi"}
	first, w1, err := p.Parse(context.Background(), src, doc)
	require.NoError(t, err)
	second, w2, err := p.Parse(context.Background(), src, doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, w1, w2)
	assert.NotEmpty(t, first.Root.Children)
}

func TestParser_ParseFile(t *testing.T) {
	p := NewParser()
	tree, _, err := p.ParseFile(context.Background(), filepath.Join("testdata", "sample.rbi"), Document{Path: "sample.rbi"})
	require.NoError(t, err)
	assert.Equal(t, "sample.rbi", tree.Document.Path)

	_, _, err = p.ParseFile(context.Background(), filepath.Join("testdata", "missing.rbi"), Document{Path: "missing.rbi"})
	assert.Error(t, err)
}

func TestSpan_String(t *testing.T) {
	local := Span{Document: Document{Path: "a.rbi"}, Start: Position{Line: 2, Column: 2}, End: Position{Line: 2, Column: 14}}
	assert.Equal(t, "a.rbi:2:2-2:14", local.String())

	remote := Span{
		Document: Document{Path: "https://github.com/sorbet/sorbet/tree/master/rbi/core/object.rbi", Remote: true},
		Start:    Position{Line: 27},
		End:      Position{Line: 30, Column: 3},
	}
	assert.Equal(t, "https://github.com/sorbet/sorbet/tree/master/rbi/core/object.rbi#L27", remote.String())
	assert.True(t, local.Before(Span{Start: Position{Line: 3}}))
}
