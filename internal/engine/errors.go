package engine

import "fmt"

// AuditError reports that a decision was reached but its audit event could
// not be written. Callers receive the decision alongside this error.
type AuditError struct {
	Err error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("engine: audit write failed: %v", e.Err)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}
