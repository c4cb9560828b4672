package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeValidationError       ErrorCode = "VALIDATION_ERROR"
	CodeInternal              ErrorCode = "INTERNAL_ERROR"
	CodeUnexpectedToken       ErrorCode = "UNEXPECTED_TOKEN"
	CodeRecursiveInheritance  ErrorCode = "RECURSIVE_INHERITANCE"
	CodeFrozenState           ErrorCode = "FROZEN_STATE"
	CodeCacheMiss             ErrorCode = "CACHE_MISS"
	CodeCorruptCache          ErrorCode = "CORRUPT_CACHE"
	CodeUnsupportedAnalyzer   ErrorCode = "UNSUPPORTED_ANALYZER"
	CodeUnsupportedReportType ErrorCode = "UNSUPPORTED_REPORT"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxAnalyzer  = "analyzer"
	CtxSymbol    = "symbol"
	CtxLine      = "line"
)

// Coder is implemented by typed errors that belong to the taxonomy without
// being a *DomainError themselves.
type Coder interface {
	ErrorCode() ErrorCode
}

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) ErrorCode() ErrorCode {
	return e.Code
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key/value to the first DomainError in the chain,
// wrapping foreign errors as internal ones.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return err
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// CodeOf returns the code of the first coded error in the chain.
func CodeOf(err error) (ErrorCode, bool) {
	var c Coder
	if errors.As(err, &c) {
		return c.ErrorCode(), true
	}
	return "", false
}

// IsCode checks if any error in the chain carries a specific error code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if c, ok := err.(Coder); ok && c.ErrorCode() == code {
			return true
		}
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if IsCode(inner, code) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = x.Unwrap()
		default:
			return false
		}
	}
	return false
}
