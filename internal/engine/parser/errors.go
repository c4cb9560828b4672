package parser

import (
	stderrors "errors"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
)

// UnexpectedTokenError reports a token the grammar does not allow at its
// position.
type UnexpectedTokenError struct {
	Image  string
	File   string
	Line   int
	Column int
}

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("Unexpected token: %s, line: %d, col: %d, file: %s", e.Image, e.Line, e.Column, e.File)
}

func (e *UnexpectedTokenError) ErrorCode() errors.ErrorCode {
	return errors.CodeUnexpectedToken
}

// TokenStreamEndError reports input that ends inside a construct.
type TokenStreamEndError struct {
	File   string
	Line   int
	Column int
}

func (e *TokenStreamEndError) Error() string {
	return fmt.Sprintf("Unexpected end of token stream in file: %s.", e.File)
}

func (e *TokenStreamEndError) ErrorCode() errors.ErrorCode {
	return errors.CodeUnexpectedToken
}

// Location extracts file, line and column from a parse error.
func Location(err error) (file string, line, column int, ok bool) {
	var unexpected *UnexpectedTokenError
	if stderrors.As(err, &unexpected) {
		return unexpected.File, unexpected.Line, unexpected.Column, true
	}
	var end *TokenStreamEndError
	if stderrors.As(err, &end) {
		return end.File, end.Line, end.Column, true
	}
	return "", 0, 0, false
}
