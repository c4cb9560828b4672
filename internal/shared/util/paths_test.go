package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlashPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./src/Foo.php  ", expected: "src/Foo.php"},
		{name: "Backslashes", input: `src\Model\User.php`, expected: "src/Model/User.php"},
		{name: "Relative", input: "src/../lib", expected: "lib"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SlashPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestWithinRoot(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path, root string
		want       bool
	}{
		{"/p/src", "/p/src", true},
		{"/p/src/A.php", "/p/src", true},
		{"/p/srcs/A.php", "/p/src", false},
		{"/p", "/p/src", false},
		{"/p/src/A.php", "/", true},
		{"", "", true},
	}
	for _, tc := range cases {
		if got := WithinRoot(tc.path, tc.root); got != tc.want {
			t.Errorf("WithinRoot(%q, %q) = %v, want %v", tc.path, tc.root, got, tc.want)
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reports", "trend.tsv")

	if err := WriteFileAtomic(path, []byte("one"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Fatalf("expected replaced content, got %q", data)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, found %d entries", len(entries))
	}
}
