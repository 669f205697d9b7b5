package extract

import "fmt"

// InvalidPatternError reports a malformed regex supplied by a template
// author. It is fatal to the extraction operation and named so the
// application layer can point at the offending field.
type InvalidPatternError struct {
	Field   string
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("field %q: invalid pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }
