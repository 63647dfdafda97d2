package loan

import "errors"

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidTransition = errors.New("invalid loan state transition")
	ErrPendingExists     = errors.New("borrower already has a pending loan")
)
