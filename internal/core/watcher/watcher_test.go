package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/shared/util"
)

func newScope(t *testing.T, root string) *app.Scanner {
	t.Helper()
	s, err := app.NewScanner([]string{root}, []string{".php"}, []string{"vendor"}, []string{"*.generated.php"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func startWatcher(t *testing.T, root string, debounce time.Duration, opts ...Option) (*Watcher, chan []string) {
	t.Helper()
	changed := make(chan []string, 8)
	w, err := NewWatcher(newScope(t, root), debounce, func(_ context.Context, paths []string) {
		changed <- paths
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, changed
}

func waitFor(t *testing.T, changed chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changed:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(newScope(t, t.TempDir()), 100*time.Millisecond, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	defer goleak.VerifyNone(t)

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "vendor"), 0o755); err != nil {
		t.Fatal(err)
	}
	w, changed := startWatcher(t, root, 50*time.Millisecond)

	testFile := filepath.Join(root, "Service.php")
	if err := os.WriteFile(testFile, []byte("<?php class Service {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, testFile)

	for _, ignored := range []string{"notes.txt", "Model.generated.php", filepath.Join("vendor", "Lib.php")} {
		if err := os.WriteFile(filepath.Join(root, ignored), []byte("<?php"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changed:
		t.Errorf("excluded files triggered a change: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}

	subdir := filepath.Join(root, "src", "Domain")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "Entity.php")
	if err := os.WriteFile(nested, []byte("<?php class Entity {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, nested)

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, changed := startWatcher(t, root, 50*time.Millisecond)

	oldPath := filepath.Join(root, "Old.php")
	newPath := filepath.Join(root, "New.php")
	if err := os.WriteFile(oldPath, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, newPath)
}

func TestWatcher_LimiterDelaysRuns(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	limiter := util.NewLimiter(2, 1)
	_, changed := startWatcher(t, root, 10*time.Millisecond, WithLimiter(limiter))

	first := filepath.Join(root, "A.php")
	if err := os.WriteFile(first, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, first)

	start := time.Now()
	second := filepath.Join(root, "B.php")
	if err := os.WriteFile(second, []byte("<?php"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, second)
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected the limiter to delay the second run, took %s", elapsed)
	}
}

func TestWatcher_CloseWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	w, err := NewWatcher(newScope(t, t.TempDir()), time.Second, func(context.Context, []string) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
