package domain

import (
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketPurchased TicketStatus = "purchased"
)

// TicketRecord is one row of a competition's ticket pool. Purchased rows are
// terminal: they keep their holder and entry ID forever and are never reused.
type TicketRecord struct {
	CompetitionID int64
	Number        int
	Status        TicketStatus
	HolderID      string
	EntryID       uuid.NullUUID
	ReservedUntil *time.Time
	UpdatedAt     time.Time
}

// Reservation is the result of a successful claim: the numbers now held by
// the shopper and the moment the hold lapses.
type Reservation struct {
	Numbers       []int     `json:"numbers"`
	ReservedUntil time.Time `json:"reserved_until"`
}

// PoolSnapshot partitions a competition's numbers by effective status.
// Reserved rows whose hold has already lapsed are listed as available even
// if the reaper has not swept them yet.
type PoolSnapshot struct {
	Available []int
	Reserved  []int
	Purchased []int
}

type InventoryCounts struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Purchased int64 `json:"purchased"`
	Total     int64 `json:"total_tickets"`
}
