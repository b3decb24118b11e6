package tools

import (
	"errors"
	"fmt"
)

// UnknownToolError is returned when a tool call targets a tool that is
// not present in the registry. This is a capability mismatch, not a
// transient execution failure.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.Name)
}

// MalformedInputError is returned when tool arguments fail schema
// validation or carry values the handler cannot interpret, such as an
// unparseable date. The tool was never run.
type MalformedInputError struct {
	Tool   string
	Detail string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input for %s: %s", e.Tool, e.Detail)
}

// IsMalformedInput reports whether err is a MalformedInputError.
func IsMalformedInput(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}
