package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func npathOf(t *testing.T, body string) uint64 {
	t.Helper()
	p := parseProject(t, "<?php\nfunction subject($a, $b, $c, $d) {\n"+body+"\n}\n")
	return NPath(p.callable(t, "subject").Body())
}

func TestNPathWorkedExamples(t *testing.T) {
	cases := []struct {
		name string
		body string
		want uint64
	}{
		{"empty body", ``, 1},
		{"single if", `if ($a) {}`, 2},
		{"if with else", `if ($a) {} else {}`, 2},
		{"two sibling ifs", `if ($a) {} if ($b) {}`, 4},
		{"nested ifs", `if ($a) { if ($b) {} }`, 3},
		{"nested ifs without braces", `if ($a) if ($b) foo();`, 3},
		{"elseif chain", `if ($a) {} elseif ($b) {} elseif ($c) {}`, 4},
		{"else if chain", `if ($a) {} else if ($b) {} else {}`, 3},
		{"boolean condition", `if ($a && $b) {}`, 3},
		{"single case switch", `switch ($a) { case 1: break; }`, 1},
		{"switch with three cases", `switch ($a) { case 1: break; case 2: break; default: break; }`, 3},
		{"switch with nested if", `switch ($a) { case 1: if ($b) {} break; case 2: break; }`, 3},
		{"empty while", `while ($a) {}`, 3},
		{"nested while", `while ($a) { while ($b) {} }`, 5},
		{"do while", `do {} while ($a);`, 3},
		{"simple for", `for ($i = 0; $i < 10; $i++) {}`, 2},
		{"complex for", `for ($i = 0; $i < 10 && $j; $i++) {}`, 3},
		{"simple foreach", `foreach ($a as $v) {}`, 2},
		{"foreach with nested if", `foreach ($a as $v) { if ($v) {} }`, 3},
		{"ifs and foreach", `if ($a) {} if ($b) {} foreach ($c as $v) { if ($v) {} }`, 12},
		{"try catch", `try {} catch (E $e) {}`, 2},
		{"try with catches and finally", `try {} catch (A $e) {} catch (B | C $e) {} finally {}`, 4},
		{"try with nested if", `try { if ($a) {} } catch (E $e) { if ($b) {} }`, 4},
		{"simple return", `return $a;`, 1},
		{"boolean return", `return $a && $b || $c;`, 2},
		{"conditional return", `return $a ? $b : $c;`, 2},
		{"conditional statement", `$x = $a ? $b : $c;`, 2},
		{"elvis", `$x = $a ?: $c;`, 2},
		{"nested conditionals", `$x = $a ? ($b ? 1 : 2) : 3;`, 4},
		{"conditional with logical condition", `$x = $a && $b ? $c : $d;`, 3},
		{"sibling conditionals", `$x = $a ? 1 : 2; $y = $b ? 1 : 2;`, 4},
		{"conditionals in one statement", `foo($a ? 1 : 2, $b ? 3 : 4);`, 4},
		{"sibling expressions", `$x = $a && $b || $c; $y = $d ? 1 : 2;`, 6},
		{"match", `$x = match ($a) { 1 => 'a', 2, 3 => 'b', default => 'c' };`, 3},
		{"closure is a separate scope", `$f = function () { if ($a) {} if ($b) {} };`, 1},
		{"arrow function is a separate scope", `$f = fn ($x) => $x && $a;`, 1},
		{"alternative syntax", "if ($a):\nfoo();\nelseif ($b):\nbar();\nendif;", 3},
		{"declare block", `declare(ticks=1) { if ($a) {} }`, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, npathOf(t, tc.body))
		})
	}
}

func TestNPathAbstractMethodIsOne(t *testing.T) {
	p := parseProject(t, `<?php
abstract class A { abstract function m(); }
interface I { function n(); }
`)
	a := NewNPathComplexity(nil)
	run(t, a, p)
	assert.Equal(t, Metrics{MetricNPath: 1}, a.NodeMetrics(p.callable(t, "A::m")))
	assert.Equal(t, Metrics{MetricNPath: 1}, a.NodeMetrics(p.callable(t, "I::n")))
	assert.Equal(t, Metrics{MetricNPath: 2}, a.ProjectMetrics())
}

func TestNPathSaturates(t *testing.T) {
	body := strings.Repeat("if ($a) {}\n", 70)
	assert.Equal(t, uint64(math.MaxUint64), npathOf(t, body))
}

func TestPathCount(t *testing.T) {
	assert.Equal(t, uint64(0), PathCount(-1))
	assert.Equal(t, uint64(12), PathCount(12))
	assert.Equal(t, uint64(math.MaxUint64), PathCount(float64(math.MaxUint64)))

	p := parseProject(t, "<?php\nfunction f($a) {\n"+strings.Repeat("if ($a) {}\n", 70)+"}\nfunction g() {}\n")
	a := NewNPathComplexity(nil)
	run(t, a, p)
	assert.Equal(t, uint64(math.MaxUint64), PathCount(a.ProjectMetrics()[MetricNPath]))
}

func TestNPathProjectSumsCallables(t *testing.T) {
	p := parseProject(t, `<?php
function f($a) { if ($a) {} }
class C { function m($a) { while ($a) {} } }
`)
	a := NewNPathComplexity(nil)
	run(t, a, p)
	require.Equal(t, Metrics{MetricNPath: 3}, a.NodeMetrics(p.callable(t, "C::m")))
	assert.Equal(t, Metrics{MetricNPath: 5}, a.ProjectMetrics())
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), addSat(math.MaxUint64, 1))
	assert.Equal(t, uint64(math.MaxUint64), mulSat(math.MaxUint64/2, 3))
	assert.Equal(t, uint64(0), mulSat(0, math.MaxUint64))
	assert.Equal(t, uint64(12), mulSat(3, 4))
}

func TestNPathKeepsDuplicateDeclarationsApart(t *testing.T) {
	p := parseProject(t,
		`<?php function foo($a) {}`,
		`<?php function foo($a) { if ($a) {} }`,
		`<?php function foo($a) { if ($a) {} if ($a) {} }`,
	)
	a := NewNPathComplexity(nil)
	run(t, a, p)

	byFile := map[string]float64{}
	for _, ns := range p.namespaces {
		for _, f := range ns.Functions() {
			byFile[f.CompilationUnit().FileName()] = a.NodeMetrics(f)[MetricNPath]
		}
	}
	assert.Equal(t, map[string]float64{"file0.php": 1, "file1.php": 2, "file2.php": 4}, byFile)
	assert.Equal(t, Metrics{MetricNPath: 7}, a.ProjectMetrics())
}
