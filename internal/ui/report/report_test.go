package report

import (
	"bytes"
	"context"
	"encoding/xml"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/core/ports"
)

var fixture = ports.StaticSources{
	{Path: "src/a.php", Content: []byte(`<?php
namespace App;

class Foo
{
    public function bar($a)
    {
        if ($a) {
            return 1;
        }
        return 0;
    }
}

interface Baz {}

function helper() {}
`)},
	{Path: "src/b.php", Content: []byte("<?php\ntrait T { function t() {} }\n")},
	{Path: "src/c.php", Content: []byte("<?php\necho 1;\n")},
}

func analyze(t *testing.T, sources ports.StaticSources) *app.Result {
	t.Helper()
	res, err := app.NewRunner(app.WithTolerant(false)).Run(context.Background(), sources)
	require.NoError(t, err)
	return res
}

type xmlTree struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlTree  `xml:",any"`
}

func (n xmlTree) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n xmlTree) child(element, name string) (xmlTree, bool) {
	for _, c := range n.Children {
		if c.XMLName.Local != element {
			continue
		}
		if v, _ := c.attr("name"); v == name || name == "" {
			return c, true
		}
	}
	return xmlTree{}, false
}

func render(t *testing.T, g Generator, res *app.Result) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, g.Generate(&buf, res))
	return buf.Bytes()
}

func decodeXML(t *testing.T, data []byte) xmlTree {
	t.Helper()
	var root xmlTree
	require.NoError(t, xml.Unmarshal(data, &root))
	return root
}

func attrNames(n xmlTree, skip int) []string {
	var names []string
	for _, a := range n.Attrs[skip:] {
		names = append(names, a.Name.Local)
	}
	return names
}

func TestPHPUnitXML(t *testing.T) {
	out := render(t, PHPUnitXML{}, analyze(t, fixture))
	assert.True(t, bytes.HasPrefix(out, []byte(xml.Header)))

	root := decodeXML(t, out)
	assert.Equal(t, "metrics", root.XMLName.Local)
	assert.True(t, sort.StringsAreSorted(attrNames(root, 0)))

	files, _ := root.attr("files")
	assert.Equal(t, "1", files)
	classes, _ := root.attr("classes")
	assert.Equal(t, "1", classes)
	interfs, _ := root.attr("interfs")
	assert.Equal(t, "1", interfs)
	_, hasCCN2 := root.attr("ccn2")
	assert.False(t, hasCCN2)
	_, hasNOC := root.attr("noc")
	assert.False(t, hasNOC)
	_, hasMaxDIT := root.attr("maxdit")
	assert.True(t, hasMaxDIT)

	file, ok := root.child("file", "src/a.php")
	require.True(t, ok)
	assert.Equal(t, "name", file.Attrs[0].Name.Local)
	assert.True(t, sort.StringsAreSorted(attrNames(file, 1)))
	fileClasses, _ := file.attr("classes")
	assert.Equal(t, "2", fileClasses)
	fileFunctions, _ := file.attr("functions")
	assert.Equal(t, "1", fileFunctions)
	_, hasExec := file.attr("locExecutable")
	assert.True(t, hasExec)

	foo, ok := file.child("class", "Foo")
	require.True(t, ok)
	bar, ok := foo.child("method", "bar")
	require.True(t, ok)
	ccn, _ := bar.attr("ccn")
	assert.Equal(t, "2", ccn)
	npath, _ := bar.attr("npath")
	assert.Equal(t, "2", npath)

	_, ok = file.child("class", "Baz")
	assert.True(t, ok)
	_, ok = file.child("function", "helper")
	assert.True(t, ok)

	_, ok = root.child("file", "src/b.php")
	assert.False(t, ok, "trait-only files are not listed")
}

func TestSummaryXML(t *testing.T) {
	sources := append(ports.StaticSources{}, fixture...)
	sources = append(sources, ports.Source{Path: "src/broken.php", Content: []byte("<?php\nclass {\n")})
	root := decodeXML(t, render(t, SummaryXML{}, analyze(t, sources)))

	generated, _ := root.attr("generated")
	assert.NotEmpty(t, generated)
	version, _ := root.attr("pdepend")
	assert.Equal(t, Version, version)

	files, ok := root.child("files", "")
	require.True(t, ok)
	assert.Len(t, files.Children, 3)

	pkg, ok := root.child("package", "App")
	require.True(t, ok)
	foo, ok := pkg.child("class", "Foo")
	require.True(t, ok)
	fqname, _ := foo.attr("fqname")
	assert.Equal(t, `App\Foo`, fqname)
	source, ok := foo.child("file", "src/a.php")
	require.True(t, ok)
	start, _ := source.attr("start")
	assert.Equal(t, "4", start)
	_, ok = foo.child("method", "bar")
	assert.True(t, ok)
	_, ok = pkg.child("interface", "Baz")
	assert.True(t, ok)
	helper, ok := pkg.child("function", "helper")
	require.True(t, ok)
	_, ok = helper.child("file", "src/a.php")
	assert.True(t, ok)

	global, ok := root.child("package", "+global")
	require.True(t, ok)
	_, ok = global.child("trait", "T")
	assert.True(t, ok)

	errs, ok := root.child("errors", "")
	require.True(t, ok)
	require.Len(t, errs.Children, 1)
	file, _ := errs.Children[0].attr("file")
	assert.Equal(t, "src/broken.php", file)
}

func TestYAML(t *testing.T) {
	out := render(t, YAML{}, analyze(t, fixture))

	var doc yamlDocument
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, Version, doc.Version)
	assert.Contains(t, doc.Metrics, "ccn")
	assert.Len(t, doc.Files, 3)
	assert.Empty(t, doc.Errors)

	var pkg *yamlPackage
	for i := range doc.Packages {
		if doc.Packages[i].Name == "App" {
			pkg = &doc.Packages[i]
		}
	}
	require.NotNil(t, pkg)
	require.Len(t, pkg.Types, 2)
	assert.Equal(t, "class", pkg.Types[0].Kind)
	assert.Equal(t, "interface", pkg.Types[1].Kind)
	require.Len(t, pkg.Types[0].Methods, 1)
	assert.Equal(t, 2.0, pkg.Types[0].Methods[0].Metrics["ccn"])
	require.Len(t, pkg.Functions, 1)
	assert.Equal(t, "src/a.php", pkg.Functions[0].File)
}

func TestText(t *testing.T) {
	out := string(render(t, NewText(), analyze(t, fixture)))
	assert.Contains(t, out, "Project metrics")
	assert.Contains(t, out, `App\Foo::bar()`)
	assert.Contains(t, out, "1 classes, 1 interfaces, 1 traits, 1 functions")
	assert.Contains(t, out, "no parse errors")
}

func TestTextWithoutCyclomaticSkipsHotspots(t *testing.T) {
	res, err := app.NewRunner(app.WithAnalyzers("nodecount")).Run(context.Background(), fixture)
	require.NoError(t, err)
	out := string(render(t, NewText(), res))
	assert.NotContains(t, out, "Most complex callables")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	for _, name := range Names() {
		g, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, g.Name())
	}
	_, err := New("jdepend-xml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedReportType))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "summary.xml")
	require.NoError(t, WriteFile(path, SummaryXML{}, analyze(t, fixture)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<package")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3", formatValue(3))
	assert.Equal(t, "0.5", formatValue(0.5))
	assert.Equal(t, "9007199254740992", formatValue(1<<53))
	assert.Equal(t, "18446744073709551615", formatValue(float64(math.MaxUint64)))
}
