package errors

import (
	"errors"
	"fmt"
	"testing"
)

type typedErr struct{}

func (typedErr) Error() string        { return "typed" }
func (typedErr) ErrorCode() ErrorCode { return CodeRecursiveInheritance }

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeFrozenState, "frozen")
		if !IsCode(err, CodeFrozenState) {
			t.Error("expected IsCode to return true for CodeFrozenState")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", Wrap(errors.New("boom"), CodeCorruptCache, "bad entry"))
		if !IsCode(err, CodeCorruptCache) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
	})

	t.Run("IsCodeWithTypedError", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", typedErr{})
		if !IsCode(err, CodeRecursiveInheritance) {
			t.Error("expected IsCode to honour Coder implementations")
		}
	})

	t.Run("IsCodeWithJoined", func(t *testing.T) {
		err := errors.Join(errors.New("a"), New(CodeCacheMiss, "miss"))
		if !IsCode(err, CodeCacheMiss) {
			t.Error("expected IsCode to search joined errors")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeUnexpectedToken, "bad"), CtxPath, "a.php")
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxPath] != "a.php" {
			t.Fatalf("expected path context, got %v", err)
		}
		plain := AddContext(errors.New("io"), CtxOperation, "read")
		if !IsCode(plain, CodeInternal) {
			t.Fatalf("expected foreign error to be wrapped as internal, got %v", plain)
		}
	})
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Wrap(errors.New("x"), CodeValidationError, "bad config"))
	if code, ok := CodeOf(wrapped); !ok || code != CodeValidationError {
		t.Fatalf("expected VALIDATION_ERROR, got %q (%v)", code, ok)
	}
	if code, ok := CodeOf(errors.Join(errors.New("plain"), typedErr{})); !ok || code != CodeRecursiveInheritance {
		t.Fatalf("expected code from joined error, got %q (%v)", code, ok)
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatal("expected no code for a plain error")
	}
}
