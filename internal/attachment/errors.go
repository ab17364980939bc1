package attachment

import (
	"errors"
	"fmt"
)

var (
	ErrSlotNotFound  = errors.New("attachment slot not found")
	ErrSlotState     = errors.New("attachment slot is in the wrong state for this operation")
	ErrManagerClosed = errors.New("attachment manager is closed")
	ErrDraftNotFound = errors.New("draft not found")
)

// DerivationError reports that a remote URL could not be mapped back to an
// object path.
type DerivationError struct {
	URL string
	Err error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("derive object path from %q: %v", e.URL, e.Err)
}

func (e *DerivationError) Unwrap() error {
	return e.Err
}
