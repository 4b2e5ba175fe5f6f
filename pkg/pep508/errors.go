package pep508

import (
	"fmt"

	"github.com/matzehuels/pylock/pkg/errors"
)

// ParseError reports a malformed requirement or marker.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid requirement %q: %s", e.Input, e.Reason)
}

// ErrorCode implements errors.Coder.
func (e *ParseError) ErrorCode() errors.Code { return errors.ErrCodeParse }
