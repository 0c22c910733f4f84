package catalog

import "github.com/pkg/errors"

// Error wraps a transport/backend failure from the persistence layer
// (§4.1: "All accessors fail with CatalogError on transport/backend
// failure; callers decide whether that is fatal").
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "catalog: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// wrap attaches a stack trace to the underlying driver/gorm error before
// folding it into an *Error, so a logged failure can be traced back to the
// accessor that issued the query instead of just the sql driver frame.
func wrap(op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: errors.WithStack(err)}
}
