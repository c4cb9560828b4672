package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/engine/ast"
)

func TestBuildClassIsIdempotent(t *testing.T) {
	b := New()
	first, err := b.BuildClass(`Foo\Bar`)
	require.NoError(t, err)
	second, err := b.BuildClass(`foo\BAR`)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Foo", first.NamespaceName())
	assert.Equal(t, `Foo\Bar`, first.QualifiedName())
}

func TestBuildInterfaceDoesNotReplaceSameNamedClass(t *testing.T) {
	b := New()
	class, err := b.BuildClass("Foo")
	require.NoError(t, err)
	iface, err := b.BuildInterface("Foo")
	require.NoError(t, err)

	assert.Same(t, class, b.GetClass("Foo"))
	assert.Same(t, iface, b.GetInterface("foo"))
	assert.Same(t, class, b.GetClassOrInterface("FOO"))
}

func TestFunctionsAreCaseSensitive(t *testing.T) {
	b := New()
	lower, err := b.BuildFunction("foo")
	require.NoError(t, err)
	upper, err := b.BuildFunction("Foo")
	require.NoError(t, err)
	assert.NotSame(t, lower, upper)
	assert.Same(t, lower, b.GetFunction("foo"))
}

func TestGetFunctionFallsBackToGlobal(t *testing.T) {
	b := New()
	fn, err := b.BuildFunction("helper")
	require.NoError(t, err)
	assert.Same(t, fn, b.GetFunction(`App\helper`))
}

func TestGetReturnsCachedDummyForUnknownNames(t *testing.T) {
	b := New()
	dummy := b.GetClass(`Missing\Thing`)
	require.NotNil(t, dummy)
	assert.True(t, dummy.IsDummy())
	assert.Same(t, dummy, b.GetClass(`missing\thing`))
	assert.Equal(t, "Missing", dummy.NamespaceName())

	concrete, err := b.BuildClass(`Missing\Thing`)
	require.NoError(t, err)
	assert.False(t, concrete.IsDummy())
	assert.Same(t, concrete, b.GetClass(`Missing\Thing`))
}

func TestGetFunctionTagsPlaceholders(t *testing.T) {
	b := New()
	missing := b.GetFunction(`App\missing`)
	require.NotNil(t, missing)
	assert.True(t, missing.IsDummy())
	assert.Same(t, missing, b.GetFunction(`App\missing`))

	concrete, err := b.BuildFunction(`App\missing`)
	require.NoError(t, err)
	assert.False(t, concrete.IsDummy())
	assert.Same(t, concrete, b.GetFunction(`App\missing`))
}

func TestLeadingBackslashIsStripped(t *testing.T) {
	b := New()
	dummy := b.GetClassOrInterface(`\foo\bar\Baz`)
	assert.Equal(t, `foo\bar`, dummy.NamespaceName())
	assert.Equal(t, "Baz", dummy.Name())
}

func TestInternalTypesLiveInExtensionNamespaces(t *testing.T) {
	b := New()
	cases := map[string]string{
		"Reflection":               "+reflection",
		"ArrayObject":              "+spl",
		"InvalidArgumentException": "+spl",
		"Exception":                "+core",
		"DateTimeImmutable":        "+date",
		"PDO":                      "+pdo",
		"JsonSerializable":         "+json",
		"MyOwnClass":               ast.DefaultNamespace,
	}
	for name, want := range cases {
		assert.Equal(t, want, b.GetClassOrInterface(name).NamespaceName(), name)
	}
	assert.Empty(t, b.GetNamespaces(), "dummies are not listed as namespaces")
}

func TestUnqualifiedLookupFallsBackToOtherNamespaces(t *testing.T) {
	b := New()
	class, err := b.BuildClass(`Vendor\Widget`)
	require.NoError(t, err)
	assert.Same(t, class, b.GetClass("Widget"))
	assert.True(t, b.GetClass(`Other\Widget`).IsDummy())
}

func TestRestoreKeepsFirstDefinition(t *testing.T) {
	b := New()
	first, err := b.BuildClass("A")
	require.NoError(t, err)

	other := ast.NewClass(ast.DefaultNamespace, "A")
	require.NoError(t, b.RestoreClass(other))
	assert.Same(t, first, b.GetClass("A"))

	nss := b.GetNamespaces()
	require.Len(t, nss, 1)
	assert.Len(t, nss[0].Classes(), 2, "the duplicate is still reachable through its namespace")
}

func TestRestoreReplacesDummy(t *testing.T) {
	b := New()
	dummy := b.GetInterface(`Lib\Shape`)
	restored := ast.NewInterface("Lib", "Shape")
	require.NoError(t, b.RestoreInterface(restored))
	assert.NotSame(t, dummy, b.GetInterface(`Lib\Shape`))
	assert.Same(t, restored, b.GetInterface(`lib\shape`))
	assert.Same(t, b, restored.Context())
}

func TestRestoreFunctionAddsToNamespace(t *testing.T) {
	b := New()
	fn := ast.NewFunction("Util", "format")
	require.NoError(t, b.RestoreFunction(fn))
	nss := b.GetNamespaces()
	require.Len(t, nss, 1)
	assert.Equal(t, "Util", nss[0].Name())
	assert.Same(t, fn, nss[0].Functions()[0])
	assert.Same(t, nss[0], fn.Namespace())
}

func TestRedeclareLeavesTableUntouched(t *testing.T) {
	b := New()
	first, err := b.BuildFunction("run")
	require.NoError(t, err)
	n, err := b.Redeclare(ast.KindFunction, "run")
	require.NoError(t, err)
	second := n.(*ast.Function)
	assert.NotSame(t, first, second)
	assert.Same(t, first, b.GetFunction("run"))
	assert.NotEqual(t, first.ID(), second.ID())

	_, err = b.Redeclare(ast.KindMethod, "nope")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestFreezeRejectsFurtherBuilds(t *testing.T) {
	b := New()
	_, err := b.BuildClass("Before")
	require.NoError(t, err)
	require.Len(t, b.GetNamespaces(), 1)
	assert.True(t, b.Frozen())

	builds := map[string]func() error{
		"class":     func() error { _, err := b.BuildClass("After"); return err },
		"interface": func() error { _, err := b.BuildInterface("After"); return err },
		"trait":     func() error { _, err := b.BuildTrait("After"); return err },
		"function":  func() error { _, err := b.BuildFunction("after"); return err },
		"method":    func() error { _, err := b.BuildMethod("after"); return err },
		"namespace": func() error { _, err := b.BuildNamespace("After"); return err },
		"reference": func() error { _, err := b.BuildClassReference("After"); return err },
		"self":      func() error { _, err := b.BuildSelfReference(); return err },
		"restore":   func() error { return b.RestoreClass(ast.NewClass("", "After")) },
		"redeclare": func() error { _, err := b.Redeclare(ast.KindClass, "Before"); return err },
	}
	for name, build := range builds {
		err := build()
		require.Error(t, err, name)
		assert.True(t, errors.IsCode(err, errors.CodeFrozenState), name)
		assert.Contains(t, err.Error(), "Cannot create new nodes, when internal state is frozen.")
	}

	// Lookups keep working after the freeze.
	assert.False(t, b.GetClass("Before").IsDummy())
	assert.True(t, b.GetClass("Unknown").IsDummy())
}

func TestReferencesResolveLazily(t *testing.T) {
	b := New()
	ref, err := b.BuildClassReference(`\App\Service`)
	require.NoError(t, err)
	assert.Equal(t, `App\Service`, ref.Image())

	resolved, err := ref.ReferencedType()
	require.NoError(t, err)
	assert.True(t, resolved.IsDummy())

	concrete, err := b.BuildClass(`App\Service`)
	require.NoError(t, err)
	resolved, err = ref.ReferencedType()
	require.NoError(t, err)
	assert.Same(t, concrete, resolved)
}

func TestNamespacesKeepCreationOrder(t *testing.T) {
	b := New()
	for _, name := range []string{`B\X`, `A\Y`, `B\Z`} {
		_, err := b.BuildClass(name)
		require.NoError(t, err)
	}
	_, err := b.BuildNamespace("Empty")
	require.NoError(t, err)

	nss := b.GetNamespaces()
	require.Len(t, nss, 2)
	assert.Equal(t, "B", nss[0].Name())
	assert.Equal(t, "A", nss[1].Name())
	assert.Len(t, nss[0].Types(), 2)
}

func TestRollbackUndoesLaterDeclarations(t *testing.T) {
	b := New()
	kept, err := b.BuildClass(`App\Kept`)
	require.NoError(t, err)
	placeholder := b.GetClass(`App\Broken`)
	require.True(t, placeholder.IsDummy())

	sp := b.Savepoint()
	broken, err := b.BuildClass(`App\Broken`)
	require.NoError(t, err)
	_, err = b.BuildFunction(`Other\helper`)
	require.NoError(t, err)
	dup, err := b.Redeclare(ast.KindClass, `App\Kept`)
	require.NoError(t, err)
	require.Same(t, broken, b.GetClass(`App\Broken`))

	b.Rollback(sp)

	assert.Same(t, placeholder, b.GetClass(`App\Broken`))
	assert.True(t, b.GetFunction(`Other\helper`).IsDummy())
	assert.Same(t, kept, b.GetClass(`App\Kept`))

	again, err := b.BuildClass(`App\Broken`)
	require.NoError(t, err)
	assert.NotSame(t, broken, again)

	nss := b.GetNamespaces()
	require.Len(t, nss, 1, "the emptied namespace is not reported")
	assert.Equal(t, []*ast.Class{kept, again}, nss[0].Classes())
	assert.NotContains(t, nss[0].Types(), dup)
}
