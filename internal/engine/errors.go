package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidRange rejects inverted date ranges before any I/O happens.
var ErrInvalidRange = errors.New("start date must be on or before end date")

// MaxResultsExceededError aborts a populate run whose Gmail query matched more
// messages than the caller's safety limit. It is a hard stop, not a
// truncation: returning a partial window would corrupt the "this range is
// fully resolved" invariant the cache depends on. Windows completed before
// the failing one stay committed.
type MaxResultsExceededError struct {
	MaxResults int
	Found      int
}

func (e *MaxResultsExceededError) Error() string {
	return fmt.Sprintf("exceeded maximum number of results per Gmail search (max=%d, num results=%d)", e.MaxResults, e.Found)
}
