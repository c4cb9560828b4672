package report

import (
	"encoding/xml"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"io"
)

// phpunitNames renames metrics to the identifiers PHPUnit's log format uses.
// A renamed metric is not emitted under its own name.
var phpunitNames = map[string]string{
	metrics.MetricCCN2:   "ccn",
	metrics.MetricNOC:    "classes",
	metrics.MetricNOI:    "interfs",
	metrics.MetricNOF:    "functions",
	metrics.MetricELOC:   "locExecutable",
	metrics.MetricMaxDIT: "maxdit",
}

func translatePHPUnit(m metrics.Metrics) metrics.Metrics {
	for from, to := range phpunitNames {
		if v, ok := m[from]; ok {
			m[to] = v
			delete(m, from)
		}
	}
	return m
}

// xmlNode is a generic element whose attribute set is only known at runtime.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []*xmlNode
}

func newNode(name string, attrs ...string) *xmlNode {
	n := &xmlNode{XMLName: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return n
}

// addMetrics appends m as attributes in name order.
func (n *xmlNode) addMetrics(m metrics.Metrics) {
	for _, name := range m.Names() {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: formatValue(m[name])})
	}
}

func (n *xmlNode) add(child *xmlNode) *xmlNode {
	n.Children = append(n.Children, child)
	return child
}

func writeXML(w io.Writer, root *xmlNode) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// PHPUnitXML writes the PHPUnit compatible metrics log: project metrics on
// the root, one file element per source file with its classes and
// functions nested below.
type PHPUnitXML struct{}

func (PHPUnitXML) Name() string { return NamePHPUnitXML }

type phpunitFile struct {
	unit     *ast.CompilationUnit
	metrics  metrics.Metrics
	children []*xmlNode
}

func (PHPUnitXML) Generate(w io.Writer, res *app.Result) error {
	var order []*phpunitFile
	files := make(map[string]*phpunitFile)
	fileOf := func(u *ast.CompilationUnit) *phpunitFile {
		name := unitName(u)
		if f, ok := files[name]; ok {
			return f
		}
		m := metrics.Metrics{"classes": 0, "functions": 0}
		if u != nil {
			for k, v := range res.NodeMetrics(u) {
				m[k] = v
			}
		}
		f := &phpunitFile{unit: u, metrics: translatePHPUnit(m)}
		files[name] = f
		order = append(order, f)
		return f
	}

	for _, ns := range res.Namespaces {
		for _, t := range reportedTypes(ns) {
			if _, ok := t.(*ast.Trait); ok {
				continue
			}
			f := fileOf(t.CompilationUnit())
			class := newNode("class", "name", t.Name())
			class.addMetrics(translatePHPUnit(res.NodeMetrics(t)))
			for _, m := range t.Methods() {
				method := class.add(newNode("method", "name", m.Name()))
				method.addMetrics(translatePHPUnit(res.NodeMetrics(m)))
			}
			f.children = append(f.children, class)
			f.metrics["classes"]++
		}
		for _, fn := range ns.Functions() {
			f := fileOf(fn.CompilationUnit())
			function := newNode("function", "name", fn.Name())
			function.addMetrics(translatePHPUnit(res.NodeMetrics(fn)))
			f.children = append(f.children, function)
			f.metrics["functions"]++
		}
	}

	root := newNode("metrics")
	project := res.Project.Clone()
	project["files"] = float64(len(order))
	root.addMetrics(translatePHPUnit(project))
	for _, f := range order {
		file := root.add(newNode("file", "name", unitName(f.unit)))
		file.addMetrics(f.metrics)
		file.Children = f.children
	}
	return writeXML(w, root)
}
