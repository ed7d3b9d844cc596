package engine

import "fmt"

// InvalidChoiceError reports a decision that no fragment or choice can
// accept. A client programming error; the caller should reject the request
// rather than narrate it.
type InvalidChoiceError struct {
	FragmentID string
	ChoiceID   string
	Err        error
}

func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %q on fragment %q: %v", e.ChoiceID, e.FragmentID, e.Err)
}

func (e *InvalidChoiceError) Unwrap() error { return e.Err }

// PersistenceError reports a storage failure. Nothing was applied; the
// request can be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
