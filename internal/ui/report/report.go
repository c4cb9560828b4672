// Package report renders analysis results. Every format is a Generator
// selected by name; files are written atomically next to their target.
package report

import (
	"bytes"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"io"
	"math"
	"strconv"
	"time"
)

// Generator writes one report format for a finished run.
type Generator interface {
	Name() string
	Generate(w io.Writer, res *app.Result) error
}

const (
	NamePHPUnitXML = "phpunit-xml"
	NameSummaryXML = "summary-xml"
	NameYAML       = "yaml"
	NameText       = "text"
)

// Version is written into generated reports.
var Version = "dev"

// Names lists the known report formats.
func Names() []string {
	return []string{NamePHPUnitXML, NameSummaryXML, NameYAML, NameText}
}

// New returns the generator registered under name.
func New(name string) (Generator, error) {
	switch name {
	case NamePHPUnitXML:
		return PHPUnitXML{}, nil
	case NameSummaryXML:
		return SummaryXML{}, nil
	case NameYAML:
		return YAML{}, nil
	case NameText:
		return NewText(), nil
	}
	return nil, errors.New(errors.CodeUnsupportedReportType, "unsupported report type: "+name)
}

// WriteFile renders res with g into path. The output goes to a temporary
// file in the same directory first so readers never see a partial report.
func WriteFile(path string, g Generator, res *app.Result) error {
	var buf bytes.Buffer
	if err := g.Generate(&buf, res); err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}

	if err := util.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	return nil
}

// formatValue prints integral values without a fraction. Saturated path
// counts print as MaxUint64 rather than the float's 2^64.
func formatValue(v float64) string {
	if v >= float64(math.MaxUint64) {
		return strconv.FormatUint(metrics.PathCount(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func generatedAt(res *app.Result) string {
	t := res.Started
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

// reportedTypes returns the named types of ns, skipping anonymous classes.
func reportedTypes(ns *ast.Namespace) []ast.Type {
	var out []ast.Type
	for _, t := range ns.Types() {
		if c, ok := t.(*ast.Class); ok && c.IsAnonymous() {
			continue
		}
		out = append(out, t)
	}
	return out
}

func typeElement(t ast.Type) string {
	switch x := t.(type) {
	case *ast.Interface:
		return "interface"
	case *ast.Trait:
		return "trait"
	case *ast.Class:
		if x.IsEnum() {
			return "enum"
		}
	}
	return "class"
}

func unitName(u *ast.CompilationUnit) string {
	if u == nil {
		return ""
	}
	return u.FileName()
}
