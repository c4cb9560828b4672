package report

import (
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"io"
	"strconv"
)

// SummaryXML writes the summary log: project metrics on the root, the list
// of analyzed files, then one package element per namespace holding its
// types and functions.
type SummaryXML struct{}

func (SummaryXML) Name() string { return NameSummaryXML }

func (SummaryXML) Generate(w io.Writer, res *app.Result) error {
	root := newNode("metrics", "generated", generatedAt(res), "pdepend", Version)
	root.addMetrics(res.Project)

	files := root.add(newNode("files"))
	for _, u := range res.Units {
		file := files.add(newNode("file", "name", u.FileName()))
		file.addMetrics(res.NodeMetrics(u))
	}

	for _, ns := range res.Namespaces {
		pkg := root.add(newNode("package", "name", ns.Name()))
		pkg.addMetrics(res.NodeMetrics(ns))
		for _, t := range reportedTypes(ns) {
			typ := pkg.add(newNode(typeElement(t), "name", t.Name(), "fqname", t.QualifiedName()))
			typ.addMetrics(res.NodeMetrics(t))
			typ.add(sourceNode(t.CompilationUnit(), t.Position()))
			for _, m := range t.Methods() {
				method := typ.add(newNode("method", "name", m.Name()))
				method.addMetrics(res.NodeMetrics(m))
			}
		}
		for _, fn := range ns.Functions() {
			function := pkg.add(newNode("function", "name", fn.Name()))
			function.addMetrics(res.NodeMetrics(fn))
			function.add(sourceNode(fn.CompilationUnit(), fn.Position()))
		}
	}

	if res.HasErrors() {
		errs := root.add(newNode("errors"))
		for _, e := range res.Errors {
			errs.add(newNode("error",
				"file", e.File,
				"line", strconv.Itoa(e.Line),
				"column", strconv.Itoa(e.Column),
				"message", e.Message,
			))
		}
	}
	return writeXML(w, root)
}

func sourceNode(u *ast.CompilationUnit, pos ast.Position) *xmlNode {
	return newNode("file",
		"name", unitName(u),
		"start", strconv.Itoa(pos.StartLine),
		"end", strconv.Itoa(pos.EndLine),
	)
}
