package preload

import "fmt"

// LoadError reports a single frame that failed to fetch or decode. It never
// escapes LoadBatch; callers of LoadOne decide what to do with it.
type LoadError struct {
	ID  string
	Op  string // "fetch" or "decode"
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
