package pep440

import (
	"fmt"

	"github.com/matzehuels/pylock/pkg/errors"
)

// ParseError reports a malformed version or specifier. Parsing never
// coerces bad input into a guess.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

// ErrorCode implements errors.Coder.
func (e *ParseError) ErrorCode() errors.Code { return errors.ErrCodeParse }
