package action

import (
	"fmt"
	"strings"
)

// ValidationError reports required parameters that are absent or hold
// MISSING_INFO. It is always recoverable by asking the user.
type ValidationError struct {
	Kind   Kind
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required fields: %s", e.Kind, strings.Join(e.Fields, ", "))
}
