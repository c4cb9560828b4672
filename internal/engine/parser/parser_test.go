package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/builder"
)

func parse(t *testing.T, b *builder.Builder, src string, opts ...Option) *ast.CompilationUnit {
	t.Helper()
	unit, err := New(b, opts...).ParseSource("unit", "test.php", []byte(src))
	require.NoError(t, err)
	require.NoError(t, ast.CheckPositions(unit))
	return unit
}

func onlyChild(t *testing.T, n ast.Node, kind ast.Kind) *ast.Element {
	t.Helper()
	found := ast.FindAll(n, kind)
	require.Len(t, found, 1, kind.String())
	return found[0]
}

func TestParseClassDeclaration(t *testing.T) {
	b := builder.New()
	src := `<?php
namespace App\Model;

use Lib\Base;
use Lib\Contracts\{Countable as Cnt, Named};

/**
 * A user.
 */
abstract class User extends Base implements Cnt, Named, \Stringable
{
    use Greets;

    const KIND = 'user';
    private ?string $name = null, $alias;

    /** Build one. */
    public static function create(string $name, int ...$rest): static
    {
        return new static($name);
    }

    abstract protected function id(): int;
}
`
	unit := parse(t, b, src)

	types := unit.Types()
	require.Len(t, types, 1)
	class, ok := types[0].(*ast.Class)
	require.True(t, ok)
	assert.Equal(t, `App\Model\User`, class.QualifiedName())
	assert.True(t, class.IsAbstract())
	assert.Contains(t, class.DocComment(), "A user.")
	assert.Same(t, unit, class.CompilationUnit())

	assert.Equal(t, `Lib\Base`, class.ParentReference().Image())
	var ifaces []string
	for _, ref := range class.InterfaceReferences() {
		ifaces = append(ifaces, ref.Image())
	}
	assert.Equal(t, []string{`Lib\Contracts\Countable`, `Lib\Contracts\Named`, "Stringable"}, ifaces)

	require.Len(t, class.TraitUses(), 1)
	assert.Equal(t, `App\Model\Greets`, class.TraitUses()[0].Child(0).Image())
	assert.Len(t, class.Constants(), 1)
	require.Len(t, class.Properties(), 1)
	assert.Len(t, ast.ChildrenOfKind(class.Properties()[0], ast.KindVariableDeclarator), 2)

	methods := class.Methods()
	require.Len(t, methods, 2)
	create := methods[0]
	assert.Equal(t, "create", create.Name())
	assert.True(t, create.IsStatic())
	assert.True(t, create.IsPublic())
	assert.False(t, create.IsAbstract())
	assert.Equal(t, "/** Build one. */", create.DocComment())
	params := create.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "$name", params[0].Image())
	assert.True(t, params[1].IsOptional())
	assert.Equal(t, ast.KindStaticReference, create.ReturnType().Kind())
	assert.Same(t, class, create.ParentType())

	id := methods[1]
	assert.True(t, id.IsAbstract())
	assert.True(t, id.IsProtected())
	assert.Nil(t, id.Body())

	nss := b.GetNamespaces()
	require.Len(t, nss, 1)
	assert.Equal(t, `App\Model`, nss[0].Name())
}

func TestParseFunctionsAndNamespaceBlocks(t *testing.T) {
	b := builder.New()
	unit := parse(t, b, `<?php
namespace A {
    function helper() { return strlen('x'); }
}
namespace {
    function main() { \A\helper(); }
}
`)
	fns := unit.Functions()
	require.Len(t, fns, 2)
	assert.Equal(t, `A\helper`, fns[0].QualifiedName())
	assert.Equal(t, "main", fns[1].QualifiedName())
	assert.Same(t, fns[0], b.GetFunction(`A\helper`))

	calls := ast.FindAll(fns[0], ast.KindFunctionPostfix)
	require.Len(t, calls, 1)
	assert.Equal(t, `A\strlen`, calls[0].Image())
	assert.Equal(t, `A\helper`, onlyChild(t, fns[1], ast.KindFunctionPostfix).Image())
}

func TestUnexpectedTokenMessage(t *testing.T) {
	_, err := New(builder.New()).ParseSource("u", "broken.php", []byte("<?php class {"))
	require.Error(t, err)
	assert.Equal(t, "Unexpected token: {, line: 1, col: 13, file: broken.php", err.Error())
	assert.True(t, errors.IsCode(err, errors.CodeUnexpectedToken))

	file, line, col, ok := Location(err)
	require.True(t, ok)
	assert.Equal(t, "broken.php", file)
	assert.Equal(t, 1, line)
	assert.Equal(t, 13, col)
}

func TestUnexpectedEndOfStream(t *testing.T) {
	_, err := New(builder.New()).ParseSource("u", "short.php", []byte("<?php function foo() {"))
	require.Error(t, err)
	assert.Equal(t, "Unexpected end of token stream in file: short.php.", err.Error())
	var end *TokenStreamEndError
	assert.ErrorAs(t, err, &end)
}

func TestTolerantModeRecordsErrorsAndContinues(t *testing.T) {
	b := builder.New()
	unit := parse(t, b, `<?php
function a() { $x = ; }
function b() { return 1; }
`, WithTolerant(true))
	require.Len(t, unit.Errors(), 1)
	assert.Contains(t, unit.Errors()[0].Error(), "line: 2")
	assert.Len(t, unit.Functions(), 2)
	assert.False(t, b.GetFunction("b").IsDummy())
}

func TestStrictModeDiscardsUnit(t *testing.T) {
	unit, err := New(builder.New()).ParseSource("u", "x.php", []byte("<?php function a() { $x = ; }"))
	require.Error(t, err)
	assert.Nil(t, unit)
}

func TestModernSyntax(t *testing.T) {
	src := `<?php
enum Suit: string implements HasLabel {
    case Hearts = 'H';
    case Spades = 'S';
    public function label(): string {
        return match ($this) {
            self::Hearts, self::Spades => 'card',
            default => throw new LogicException(),
        };
    }
}

final class Point {
    public function __construct(
        public readonly int|float $x = 0,
        private A&B $y = new Origin(),
    ) {}

    public function list(): array { return [...$this->items, 'k' => &$this->x]; }
}

$double = fn(int $v): int => $v * 2;
$name = $user?->profile?->name ?? 'anon';
$cb = strlen(...);
$r = str_pad(string: 'x', length: 3);
$p->list();
#[Attr(1)]
function attributed(#[Sensitive] $secret) {}
`
	unit := parse(t, builder.New(), src)

	types := unit.Types()
	require.Len(t, types, 2)
	enum := types[0].(*ast.Class)
	assert.True(t, enum.IsEnum())
	assert.Len(t, ast.ChildrenOfKind(enum, ast.KindEnumCase), 2)
	match := onlyChild(t, enum, ast.KindMatchExpression)
	arms := ast.ChildrenOfKind(match, ast.KindMatchArm)
	require.Len(t, arms, 2)
	assert.Len(t, arms[0].Children(), 3)
	assert.True(t, arms[1].Has(ast.FlagDefault))

	point := types[1].(*ast.Class)
	assert.True(t, point.IsFinal())
	ctor := point.Method("__construct")
	require.NotNil(t, ctor)
	params := ctor.Parameters()
	require.Len(t, params, 2)
	assert.True(t, params[0].Has(ast.FlagPromoted|ast.FlagReadonly))
	assert.Equal(t, ast.KindUnionType, params[0].TypeHint().Kind())
	assert.Equal(t, ast.KindIntersectionType, params[1].TypeHint().Kind())
	assert.NotNil(t, point.Method("list"))

	closure := onlyChild(t, unit, ast.KindClosure)
	assert.True(t, closure.Has(ast.FlagArrow))
	assert.Len(t, ast.FindAll(unit, ast.KindMemberPrimaryPrefix), 7)

	nullsafe := 0
	for _, m := range ast.FindAll(unit, ast.KindMemberPrimaryPrefix) {
		if m.Has(ast.FlagNullsafe) {
			nullsafe++
		}
	}
	assert.Equal(t, 2, nullsafe)
	assert.NotNil(t, unit.Functions()[0])
}

func TestAlternativeSyntax(t *testing.T) {
	unit := parse(t, builder.New(), `<?php
if ($a): ?>
<p>yes</p>
<?php elseif ($b): ?>
<p>maybe</p>
<?php else: ?>
<p>no</p>
<?php endif;
while ($i < 3):
    $i++;
endwhile;
foreach ($items as $k => &$v):
endforeach;
switch ($x):
    case 1:
        break;
    default:
endswitch;
`)
	ifStmt := ast.FindAll(unit, ast.KindIfStatement)[0]
	assert.True(t, ifStmt.Has(ast.FlagAlternative|ast.FlagHasElse))
	elseIf := ifStmt.Child(2)
	require.NotNil(t, elseIf)
	assert.Equal(t, ast.KindElseIfStatement, elseIf.Kind())
	assert.True(t, elseIf.Has(ast.FlagHasElse))
	assert.Len(t, ast.FindAll(unit, ast.KindInlineHTML), 3)

	foreach := onlyChild(t, unit, ast.KindForeachStatement)
	require.Len(t, foreach.Children(), 4)
	assert.True(t, foreach.Child(2).Has(ast.FlagByReference))

	sw := onlyChild(t, unit, ast.KindSwitchStatement)
	labels := ast.ChildrenOfKind(sw, ast.KindSwitchLabel)
	require.Len(t, labels, 2)
	assert.True(t, labels[1].Has(ast.FlagDefault))
}

func TestControlStructureShapes(t *testing.T) {
	unit := parse(t, builder.New(), `<?php
for ($i = 0, $j = 1; $i < 10; $i++) echo $i;
for (;;) {}
do { $x--; } while ($x > 0);
try { risky(); } catch (A|B $e) { log($e); } finally { done(); }
if ($a) foo(); else if ($b) bar(); else baz();
`)
	fors := ast.FindAll(unit, ast.KindForStatement)
	require.Len(t, fors, 2)
	assert.Equal(t, ast.KindForInit, fors[0].Child(0).Kind())
	assert.Len(t, fors[0].Child(0).Children(), 2)
	assert.Equal(t, ast.KindExpression, fors[0].Child(1).Kind())
	assert.Equal(t, ast.KindForUpdate, fors[0].Child(2).Kind())
	assert.Equal(t, ast.KindEchoStatement, fors[0].Child(3).Kind())
	assert.Len(t, fors[1].Children(), 1, "empty clauses are omitted")

	do := onlyChild(t, unit, ast.KindDoWhileStatement)
	assert.Equal(t, ast.KindScope, do.Child(0).Kind())
	assert.Equal(t, ast.KindBinaryExpression, do.Child(1).Kind())

	try := onlyChild(t, unit, ast.KindTryStatement)
	require.Len(t, try.Children(), 3)
	catch := try.Child(1)
	assert.Len(t, ast.ChildrenOfKind(catch, ast.KindClassOrInterfaceReference), 2)
	assert.Equal(t, ast.KindFinallyStatement, try.Child(2).Kind())

	ifs := ast.FindAll(unit, ast.KindIfStatement)
	require.Len(t, ifs, 2)
	assert.Same(t, ifs[0], ifs[1].Parent())
}

func TestOperatorPrecedence(t *testing.T) {
	unit := parse(t, builder.New(), `<?php
$a = $b || $c && $d;
$e = !$f instanceof G;
$h = $i ?: $j ?: $k;
$l = -$m ** 2;
$n = $o and $p;
`)
	stmts := ast.ChildrenOfKind(unit, ast.KindStatement)
	require.Len(t, stmts, 5)

	assign := stmts[0].Child(0)
	require.Equal(t, ast.KindAssignmentExpression, assign.Kind())
	or := assign.Child(1)
	assert.Equal(t, ast.KindBooleanOrExpression, or.Kind())
	assert.Equal(t, ast.KindBooleanAndExpression, or.Child(1).Kind())

	not := stmts[1].Child(0).Child(1)
	assert.Equal(t, ast.KindUnaryExpression, not.Kind())
	assert.Equal(t, ast.KindInstanceOfExpression, not.Child(0).Kind())

	elvis := stmts[2].Child(0).Child(1)
	require.Equal(t, ast.KindConditionalExpression, elvis.Kind())
	assert.True(t, elvis.Has(ast.FlagElvis))
	assert.Equal(t, ast.KindConditionalExpression, elvis.Child(0).Kind(), "elvis is left associative")

	neg := stmts[3].Child(0).Child(1)
	assert.Equal(t, "-", neg.Image())
	assert.Equal(t, "**", neg.Child(0).Image())

	and := stmts[4].Child(0)
	assert.Equal(t, ast.KindLogicalAndExpression, and.Kind())
	assert.Equal(t, ast.KindAssignmentExpression, and.Child(0).Kind())
}

func TestDuplicateDeclarationsKeepFirst(t *testing.T) {
	b := builder.New()
	p := New(b)
	first, err := p.ParseSource("one", "one.php", []byte("<?php class Dup { function a() {} }"))
	require.NoError(t, err)
	second, err := p.ParseSource("two", "two.php", []byte("<?php class Dup { function b() {} }"))
	require.NoError(t, err)

	assert.Same(t, first.Types()[0], b.GetClass("Dup"))
	assert.NotSame(t, first.Types()[0], second.Types()[0])
	assert.Same(t, second, second.Types()[0].CompilationUnit())

	nss := b.GetNamespaces()
	require.Len(t, nss, 1)
	assert.Len(t, nss[0].Classes(), 2)
}

func TestAnonymousClassIsNotRegistered(t *testing.T) {
	b := builder.New()
	unit := parse(t, b, `<?php $o = new class($x) extends Base { public function run() {} };`)
	alloc := onlyChild(t, unit, ast.KindAllocationExpression)
	class, ok := alloc.Children()[0].(*ast.Class)
	require.True(t, ok)
	assert.True(t, class.IsAnonymous())
	assert.Equal(t, ast.KindArguments, alloc.Child(1).Kind())
	assert.Empty(t, b.GetNamespaces())
}

func TestSnapshotRoundTrip(t *testing.T) {
	unit := parse(t, builder.New(), `<?php
namespace Shop;
interface Priced {}
class Item implements Priced { public function price(): int { return $this->net() * 2; } }
function total(array $items) { return array_sum($items); }
`)
	data, err := ast.TakeSnapshot(unit).Marshal()
	require.NoError(t, err)
	snapshot, err := ast.UnmarshalSnapshot(data)
	require.NoError(t, err)

	fresh := builder.New()
	restored, err := ast.RestoreUnit(snapshot, fresh)
	require.NoError(t, err)
	assert.True(t, restored.IsCached())
	assert.Equal(t, unit.ID(), restored.ID())
	assert.Equal(t, ast.TakeSnapshot(unit), ast.TakeSnapshot(restored))

	item := fresh.GetClass(`Shop\Item`)
	require.False(t, item.IsDummy())
	ifaces, err := item.Interfaces()
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.False(t, ifaces[0].IsDummy())
	assert.False(t, fresh.GetFunction(`Shop\total`).IsDummy())
}

func TestSnapshotOfOtherVersionIsRejected(t *testing.T) {
	unit := parse(t, builder.New(), `<?php function f() {}`)
	snapshot := ast.TakeSnapshot(unit)
	snapshot.Version = ast.SnapshotVersion - 1
	data, err := snapshot.Marshal()
	require.NoError(t, err)
	_, err = ast.UnmarshalSnapshot(data)
	assert.ErrorContains(t, err, "version")
}

func TestTraitAdaptations(t *testing.T) {
	b := builder.New()
	unit := parse(t, b, `<?php
namespace App;
class Greeter {
    use A, B {
        A::hello insteadof B, \Lib\C;
        B::hello as protected greet;
        world as private;
        list as each;
    }
}
`)
	class := b.GetClass(`App\Greeter`)
	require.Len(t, class.TraitUses(), 1)
	use := class.TraitUses()[0]
	refs := ast.ChildrenOfKind(use, ast.KindTraitReference)
	require.Len(t, refs, 2)
	block := ast.FirstChildOfKind(use, ast.KindTraitAdaptation)
	require.NotNil(t, block)

	images := func(e *ast.Element, kind ast.Kind) []string {
		var out []string
		for _, c := range ast.ChildrenOfKind(e, kind) {
			out = append(out, c.Image())
		}
		return out
	}

	precedence := ast.ChildrenOfKind(block, ast.KindTraitAdaptationPrecedence)
	require.Len(t, precedence, 1)
	assert.Equal(t, "hello", precedence[0].Image())
	assert.Equal(t, []string{`App\A`, `App\B`, `Lib\C`}, images(precedence[0], ast.KindTraitReference))

	aliases := ast.ChildrenOfKind(block, ast.KindTraitAdaptationAlias)
	require.Len(t, aliases, 3)
	assert.Equal(t, "hello", aliases[0].Image())
	assert.Equal(t, []string{`App\B`}, images(aliases[0], ast.KindTraitReference))
	assert.Equal(t, []string{"greet"}, images(aliases[0], ast.KindIdentifier))
	assert.True(t, aliases[0].Has(ast.FlagProtected))

	assert.Equal(t, "world", aliases[1].Image())
	assert.Empty(t, images(aliases[1], ast.KindTraitReference))
	assert.Empty(t, images(aliases[1], ast.KindIdentifier))
	assert.True(t, aliases[1].Has(ast.FlagPrivate))

	assert.Equal(t, "list", aliases[2].Image())
	assert.Equal(t, []string{"each"}, images(aliases[2], ast.KindIdentifier))

	resolved, err := precedence[0].Child(2).ReferencedType()
	require.NoError(t, err)
	assert.True(t, resolved.IsDummy())
	assert.Equal(t, `Lib\C`, resolved.QualifiedName())

	data, err := ast.TakeSnapshot(unit).Marshal()
	require.NoError(t, err)
	snapshot, err := ast.UnmarshalSnapshot(data)
	require.NoError(t, err)
	restored, err := ast.RestoreUnit(snapshot, builder.New())
	require.NoError(t, err)
	assert.Equal(t, ast.TakeSnapshot(unit), ast.TakeSnapshot(restored))
}

func TestTraitAdaptationErrors(t *testing.T) {
	for _, src := range []string{
		`<?php class C { use A { hello insteadof B; } }`,
		`<?php class C { use A { A::hello as; } }`,
		`<?php class C { use A { A::hello; } }`,
	} {
		_, err := New(builder.New()).ParseSource("u", "x.php", []byte(src))
		assert.Error(t, err, src)
	}
}

func TestHaltCompilerStopsParsing(t *testing.T) {
	unit := parse(t, builder.New(), "<?php function a() {}\n__halt_compiler(); this is { not php")
	assert.Len(t, unit.Functions(), 1)
}

func TestRecursiveInheritanceIsReported(t *testing.T) {
	b := builder.New()
	parse(t, b, `<?php
class X extends Y {}
class Y extends X {}
interface I extends J {}
interface J extends I {}
class Z implements I {}
`)

	_, err := b.GetClass("X").ParentClass()
	var rie *ast.RecursiveInheritanceError
	require.ErrorAs(t, err, &rie)
	assert.True(t, errors.IsCode(err, errors.CodeRecursiveInheritance))

	_, err = b.GetClass("Z").Interfaces()
	assert.True(t, errors.IsCode(err, errors.CodeRecursiveInheritance))
}

func TestFailedFileLeavesNoDeclarations(t *testing.T) {
	b := builder.New()
	p := New(b)
	_, err := p.ParseSource("broken", "broken.php", []byte(`<?php
class Broken { function m() { $x = ; } }
function stray() {}
`))
	require.Error(t, err)
	assert.True(t, b.GetClass("Broken").IsDummy())
	assert.True(t, b.GetFunction("stray").IsDummy())

	unit := parse(t, b, `<?php class Broken { function ok() {} }`)
	good := b.GetClass("Broken")
	require.False(t, good.IsDummy())
	assert.Same(t, unit, good.CompilationUnit())
	assert.Equal(t, "class:broken", good.ID())

	nss := b.GetNamespaces()
	require.Len(t, nss, 1)
	require.Len(t, nss[0].Types(), 1)
	assert.Len(t, nss[0].Types()[0].Methods(), 1)
}

func TestDuplicateDeclarationsGetUnitScopedIDs(t *testing.T) {
	b := builder.New()
	p := New(b)
	ids := map[string]string{}
	for _, file := range []string{"file0.php", "file1.php", "file2.php"} {
		_, err := p.ParseSource(file, file, []byte(`<?php function foo() {} class Foo {}`))
		require.NoError(t, err)
	}
	for _, ns := range b.GetNamespaces() {
		for _, f := range ns.Functions() {
			ids[f.ID()] = f.CompilationUnit().FileName()
		}
		for _, typ := range ns.Types() {
			ids[typ.ID()] = typ.CompilationUnit().FileName()
		}
	}
	assert.Len(t, ids, 6)
	assert.Equal(t, "file0.php", ids["function:foo"])
	assert.Equal(t, "file0.php", ids["class:foo"])
}
