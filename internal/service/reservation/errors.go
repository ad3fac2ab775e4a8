package reservation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCompetitionNotFound    = errors.New("competition not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrLimitExceeded          = errors.New("per-holder ticket limit exceeded")
	ErrTemporarilyUnavailable = errors.New("not enough tickets available")
	ErrReservationExpired     = errors.New("reservation expired")
)

// UnavailableNumbersError reports a claim conflict together with the exact
// numbers that were taken, so the shopper can reselect around them.
type UnavailableNumbersError struct {
	Numbers []int
}

func (e *UnavailableNumbersError) Error() string {
	return fmt.Sprintf("numbers unavailable: %v", e.Numbers)
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
