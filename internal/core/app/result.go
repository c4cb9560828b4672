package app

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"time"
)

// ParseError is a syntax error reported for one file. The file is left out
// of the analysis when the parser could not recover.
type ParseError struct {
	Message string
	File    string
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	return e.Message
}

func (e ParseError) String() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// Result is everything one run produced.
type Result struct {
	RunID      string
	Started    time.Time
	Duration   time.Duration
	Namespaces []*ast.Namespace
	Units      []*ast.CompilationUnit
	Analyzers  []metrics.Analyzer
	// Project merges the project metrics of every analyzer.
	Project   metrics.Metrics
	FileCount int
	Cached    int
	Errors    []ParseError
}

func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// NodeMetrics merges the metrics every analyzer recorded for n. Nodes no
// analyzer knows yield an empty map.
func (r *Result) NodeMetrics(n ast.Identifiable) metrics.Metrics {
	out := metrics.Metrics{}
	for _, a := range r.Analyzers {
		na, ok := a.(metrics.NodeAware)
		if !ok {
			continue
		}
		for name, value := range na.NodeMetrics(n) {
			out[name] = value
		}
	}
	return out
}

// Analyzer returns the analyzer with the given name, or nil.
func (r *Result) Analyzer(name string) metrics.Analyzer {
	for _, a := range r.Analyzers {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Counts returns the number of classes, interfaces, traits and functions
// in the analyzed namespaces.
func (r *Result) Counts() (classes, interfaces, traits, functions int) {
	for _, ns := range r.Namespaces {
		for _, t := range ns.Types() {
			switch t.(type) {
			case *ast.Class:
				classes++
			case *ast.Interface:
				interfaces++
			case *ast.Trait:
				traits++
			}
		}
		functions += len(ns.Functions())
	}
	return classes, interfaces, traits, functions
}
