package finalizer

import "errors"

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrInvalidRequest      = errors.New("invalid request")

	// ErrPaidReservationLost means payment was confirmed but the hold had
	// already lapsed or been released: money was taken without tickets
	// secured. It is always surfaced, never absorbed.
	ErrPaidReservationLost = errors.New("paid reservation lost")
)
