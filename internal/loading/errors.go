package loading

import (
	"fmt"
	"time"
)

// SequenceConstructionError means no frame sequence could be built. The
// attempt still completes so the page is never blocked.
type SequenceConstructionError struct {
	Name  string
	Count int
}

func (e *SequenceConstructionError) Error() string {
	return fmt.Sprintf("cannot build frame sequence %q with %d frames", e.Name, e.Count)
}

// StalledLoadingError is raised by the Supervisor when an attempt does not
// complete within its timeout.
type StalledLoadingError struct {
	Attempt int
	Timeout time.Duration
}

func (e *StalledLoadingError) Error() string {
	return fmt.Sprintf("loading attempt %d stalled after %s", e.Attempt, e.Timeout)
}
