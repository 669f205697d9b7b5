package inherit

import (
	"fmt"
	"strings"
)

// CycleError reports a cycle in the template inheritance graph. Chain holds
// the template ids in the order they were visited, ending at the id that was
// revisited.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("inheritance cycle detected: %s", strings.Join(e.Chain, " -> "))
}

// MissingAncestorError reports a dangling parent reference in the chain.
// Dangling ancestors are never silently dropped.
type MissingAncestorError struct {
	ID string
}

func (e *MissingAncestorError) Error() string {
	return fmt.Sprintf("missing ancestor template %q", e.ID)
}
