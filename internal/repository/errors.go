package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrInvalidPoolSize     = errors.New("invalid pool size")
	ErrReservationExpired  = errors.New("reservation expired")
)

// UnavailableNumbersError names exactly the ticket numbers that lost a claim
// race, so the caller can show the shopper which numbers to pick around.
type UnavailableNumbersError struct {
	Numbers []int
}

func (e *UnavailableNumbersError) Error() string {
	return fmt.Sprintf("numbers unavailable: %v", e.Numbers)
}

func (e *UnavailableNumbersError) Is(target error) bool {
	return target == ErrConflict
}
