package nql

import (
	"errors"
	"fmt"
)

// CompileError reports malformed query text. Offset is the byte position in
// Query where parsing stopped.
type CompileError struct {
	Query   string
	Offset  int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("nql: %s at offset %d", e.Message, e.Offset)
}

// IsCompileError reports whether err wraps a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
