package report

import (
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	Generated string           `yaml:"generated"`
	Version   string           `yaml:"pdepend"`
	Metrics   metrics.Metrics  `yaml:"metrics"`
	Files     []yamlFile       `yaml:"files"`
	Packages  []yamlPackage    `yaml:"packages"`
	Errors    []yamlParseError `yaml:"errors,omitempty"`
}

type yamlFile struct {
	Name    string          `yaml:"name"`
	Cached  bool            `yaml:"cached,omitempty"`
	Metrics metrics.Metrics `yaml:"metrics,omitempty"`
}

type yamlPackage struct {
	Name      string          `yaml:"name"`
	Metrics   metrics.Metrics `yaml:"metrics,omitempty"`
	Types     []yamlType      `yaml:"types,omitempty"`
	Functions []yamlCallable  `yaml:"functions,omitempty"`
}

type yamlType struct {
	Kind    string          `yaml:"kind"`
	Name    string          `yaml:"name"`
	FQName  string          `yaml:"fqname"`
	File    string          `yaml:"file"`
	Metrics metrics.Metrics `yaml:"metrics,omitempty"`
	Methods []yamlCallable  `yaml:"methods,omitempty"`
}

type yamlCallable struct {
	Name    string          `yaml:"name"`
	File    string          `yaml:"file,omitempty"`
	Metrics metrics.Metrics `yaml:"metrics,omitempty"`
}

type yamlParseError struct {
	File    string `yaml:"file"`
	Line    int    `yaml:"line"`
	Column  int    `yaml:"column"`
	Message string `yaml:"message"`
}

// YAML writes the full result tree as a YAML document.
type YAML struct{}

func (YAML) Name() string { return NameYAML }

func (YAML) Generate(w io.Writer, res *app.Result) error {
	doc := yamlDocument{
		Generated: generatedAt(res),
		Version:   Version,
		Metrics:   res.Project,
	}
	for _, u := range res.Units {
		doc.Files = append(doc.Files, yamlFile{Name: u.FileName(), Cached: u.IsCached(), Metrics: res.NodeMetrics(u)})
	}
	for _, ns := range res.Namespaces {
		pkg := yamlPackage{Name: ns.Name(), Metrics: res.NodeMetrics(ns)}
		for _, t := range reportedTypes(ns) {
			typ := yamlType{
				Kind:    typeElement(t),
				Name:    t.Name(),
				FQName:  t.QualifiedName(),
				File:    unitName(t.CompilationUnit()),
				Metrics: res.NodeMetrics(t),
			}
			for _, m := range t.Methods() {
				typ.Methods = append(typ.Methods, yamlCallable{Name: m.Name(), Metrics: res.NodeMetrics(m)})
			}
			pkg.Types = append(pkg.Types, typ)
		}
		for _, fn := range ns.Functions() {
			pkg.Functions = append(pkg.Functions, yamlCallable{
				Name:    fn.Name(),
				File:    unitName(fn.CompilationUnit()),
				Metrics: res.NodeMetrics(fn),
			})
		}
		doc.Packages = append(doc.Packages, pkg)
	}
	for _, e := range res.Errors {
		doc.Errors = append(doc.Errors, yamlParseError{File: e.File, Line: e.Line, Column: e.Column, Message: e.Message})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
