package report

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	labelStyle = lipgloss.NewStyle().Width(12)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)
)

// Text writes a terminal summary: declaration counts, project metrics, the
// most complex callables and any parse errors.
type Text struct {
	// Top limits the hotspot list.
	Top int
}

func NewText() Text {
	return Text{Top: 10}
}

func (Text) Name() string { return NameText }

type hotspot struct {
	name string
	ccn  float64
	npth float64
}

func (t Text) Generate(w io.Writer, res *app.Result) error {
	var b strings.Builder

	classes, interfaces, traits, functions := res.Counts()
	b.WriteString(titleStyle.Render("PHP Depend "+Version) + "\n")
	fmt.Fprintf(&b, "%s %d files (%d cached) in %s\n",
		headerStyle.Render("analyzed"), res.FileCount, res.Cached, res.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "%s %d namespaces, %d classes, %d interfaces, %d traits, %d functions\n\n",
		headerStyle.Render("found"), len(res.Namespaces), classes, interfaces, traits, functions)

	if len(res.Project) > 0 {
		b.WriteString(titleStyle.Render("Project metrics") + "\n")
		for _, name := range res.Project.Names() {
			fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(name), formatValue(res.Project[name]))
		}
		b.WriteString("\n")
	}

	if spots := t.hotspots(res); len(spots) > 0 {
		b.WriteString(titleStyle.Render("Most complex callables") + "\n")
		for _, s := range spots {
			line := fmt.Sprintf("  ccn=%-4s npath=%-8s %s", formatValue(s.ccn), formatValue(s.npth), s.name)
			if s.ccn >= 10 {
				line = warnStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	if res.HasErrors() {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d parse errors", len(res.Errors))) + "\n")
		for _, e := range res.Errors {
			b.WriteString("  " + e.String() + "\n")
		}
	} else {
		b.WriteString(successStyle.Render("no parse errors") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (t Text) hotspots(res *app.Result) []hotspot {
	if t.Top <= 0 || res.Analyzer(metrics.NameCyclomatic) == nil {
		return nil
	}
	var spots []hotspot
	add := func(name string, c ast.Callable) {
		m := res.NodeMetrics(c)
		spots = append(spots, hotspot{name: name, ccn: m[metrics.MetricCCN], npth: m[metrics.MetricNPath]})
	}
	for _, ns := range res.Namespaces {
		for _, typ := range reportedTypes(ns) {
			for _, m := range typ.Methods() {
				add(typ.QualifiedName()+"::"+m.Name()+"()", m)
			}
		}
		for _, fn := range ns.Functions() {
			add(fn.QualifiedName()+"()", fn)
		}
	}
	sort.SliceStable(spots, func(i, j int) bool {
		if spots[i].ccn != spots[j].ccn {
			return spots[i].ccn > spots[j].ccn
		}
		return spots[i].name < spots[j].name
	})
	if len(spots) > t.Top {
		spots = spots[:t.Top]
	}
	return spots
}
