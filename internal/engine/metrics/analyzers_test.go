package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCyclomaticComplexity(t *testing.T) {
	p := parseProject(t, `<?php
function f($a, $b, $c, $x) {
    if ($a && $b) {
    } elseif ($c) {
    }
    foreach ($x as $y) {}
    while ($a || $b) {}
    $z = $a ? 1 : 2;
    switch ($a) { case 1: break; case 2: break; default: }
    try {} catch (E $e) {}
    $g = function () { if ($q) {} };
}

function m($a) {
    return match ($a) { 1 => 'a', 2, 3 => 'b', default => 'c' };
}

abstract class A {
    abstract public function todo();
    public function logic($a) { do {} while ($a and $b xor $c); }
}
`)
	a := NewCyclomaticComplexity(nil)
	run(t, a, p)

	assert.Equal(t, Metrics{MetricCCN: 9, MetricCCN2: 11}, a.NodeMetrics(p.callable(t, "f")))
	assert.Equal(t, Metrics{MetricCCN: 3, MetricCCN2: 3}, a.NodeMetrics(p.callable(t, "m")))
	assert.Equal(t, Metrics{MetricCCN: 1, MetricCCN2: 1}, a.NodeMetrics(p.callable(t, "A::todo")))
	assert.Equal(t, Metrics{MetricCCN: 2, MetricCCN2: 4}, a.NodeMetrics(p.callable(t, "A::logic")))
	assert.Equal(t, Metrics{MetricCCN: 15, MetricCCN2: 19}, a.ProjectMetrics())
}

func TestCoupling(t *testing.T) {
	p := parseProject(t, `<?php
namespace App;

class Service
{
    private Repository $repo;

    public function run(Input $in): Output
    {
        $x = new Helper();
        $x->go();
        $x->go();
        $this->repo->find(1);
        strlen('a');
        self::local();
        return Factory::make();
    }
}

class Repository {}

function util(Service $s) { return new Repository(); }
`)
	a := NewCoupling()
	run(t, a, p)

	assert.Equal(t, Metrics{MetricCalls: 5, MetricFanout: 4}, a.NodeMetrics(p.callable(t, "Service::run")))
	assert.Equal(t, Metrics{MetricCalls: 0, MetricFanout: 2}, a.NodeMetrics(p.callable(t, "util")))
	assert.Equal(t, Metrics{MetricCa: 1, MetricCe: 5, MetricCBO: 5}, a.NodeMetrics(p.typ(t, `App\Service`)))
	assert.Equal(t, Metrics{MetricCa: 2, MetricCe: 0, MetricCBO: 0}, a.NodeMetrics(p.typ(t, `App\Repository`)))
	assert.Equal(t, Metrics{MetricCalls: 5, MetricFanout: 6}, a.ProjectMetrics())
}

func TestInheritance(t *testing.T) {
	p := parseProject(t, `<?php
class A { function a() {} function b() {} private function hidden() {} }
class B extends A { function b() {} function c() {} function hidden() {} }
class C extends B {}
class D extends A {}
class E extends \Unknown {}
class X extends Y {}
class Y extends X {}
interface I {}
`)
	a := NewInheritance(nil)
	run(t, a, p)

	assert.Equal(t, Metrics{MetricDIT: 0, MetricNOCC: 2, MetricNOAM: 3, MetricNOOM: 0}, a.NodeMetrics(p.typ(t, "A")))
	assert.Equal(t, Metrics{MetricDIT: 1, MetricNOCC: 1, MetricNOAM: 2, MetricNOOM: 1}, a.NodeMetrics(p.typ(t, "B")))
	assert.Equal(t, Metrics{MetricDIT: 2, MetricNOCC: 0, MetricNOAM: 0, MetricNOOM: 0}, a.NodeMetrics(p.typ(t, "C")))
	assert.Equal(t, Metrics{MetricDIT: 1, MetricNOCC: 0, MetricNOAM: 0, MetricNOOM: 0}, a.NodeMetrics(p.typ(t, "E")))
	assert.Equal(t, Metrics{MetricDIT: 0, MetricNOCC: 0, MetricNOAM: 0, MetricNOOM: 0}, a.NodeMetrics(p.typ(t, "X")))
	assert.Empty(t, a.NodeMetrics(p.typ(t, "I")))

	project := a.ProjectMetrics()
	assert.InDelta(t, 3.0/7.0, project[MetricANDC], 1e-9)
	assert.InDelta(t, 0.5, project[MetricAHH], 1e-9)
	assert.Equal(t, 2.0, project[MetricMaxDIT])
}

func TestNodeCount(t *testing.T) {
	p := parseProject(t, `<?php
namespace First {
    class A { function a() {} function b() {} }
    interface I { function i(); }
    trait T { function t() {} }
    function f() {}
}
namespace Second {
    enum Suit { case Hearts; public function color() {} }
    function g() {}
    function h() {}
}
`)
	a := NewNodeCount()
	run(t, a, p)

	require.Len(t, p.namespaces, 2)
	assert.Equal(t, Metrics{MetricNOC: 1, MetricNOI: 1, MetricNOM: 4, MetricNOF: 1}, a.NodeMetrics(p.namespaces[0]))
	assert.Equal(t, Metrics{MetricNOC: 1, MetricNOI: 0, MetricNOM: 1, MetricNOF: 2}, a.NodeMetrics(p.namespaces[1]))
	assert.Equal(t, Metrics{MetricNOM: 2}, a.NodeMetrics(p.typ(t, `First\A`)))
	assert.Equal(t, Metrics{MetricNOP: 2, MetricNOC: 2, MetricNOI: 1, MetricNOM: 5, MetricNOF: 3}, a.ProjectMetrics())
}

func TestNodeLoc(t *testing.T) {
	p := parseProject(t, `<?php
// comment
/**
 * Doc
 */
class A
{
    public function m()
    {
        $a = 1; // trailing

        return $a;
    }
}
function f() { if (true) { echo 1; } }`, "<?php\necho 1;")
	a := NewNodeLoc(nil)
	run(t, a, p)

	assert.Equal(t, Metrics{MetricLOC: 15, MetricCLOC: 5, MetricNCLOC: 10, MetricELOC: 5, MetricLLOC: 4}, a.NodeMetrics(p.units[0]))
	assert.Equal(t, Metrics{MetricLOC: 9, MetricCLOC: 1, MetricNCLOC: 8, MetricELOC: 4, MetricLLOC: 2}, a.NodeMetrics(p.typ(t, "A")))
	assert.Equal(t, Metrics{MetricLOC: 6, MetricCLOC: 1, MetricNCLOC: 5, MetricELOC: 3, MetricLLOC: 2}, a.NodeMetrics(p.callable(t, "A::m")))
	assert.Equal(t, Metrics{MetricLOC: 1, MetricCLOC: 0, MetricNCLOC: 1, MetricELOC: 1, MetricLLOC: 2}, a.NodeMetrics(p.callable(t, "f")))
	assert.Equal(t, Metrics{MetricLOC: 2, MetricCLOC: 0, MetricNCLOC: 2, MetricELOC: 1, MetricLLOC: 1}, a.NodeMetrics(p.units[1]))
	assert.Equal(t, Metrics{MetricLOC: 17, MetricCLOC: 5, MetricNCLOC: 12, MetricELOC: 6, MetricLLOC: 5}, a.ProjectMetrics())
}
