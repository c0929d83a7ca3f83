package domain

import "time"

type TickStatus string

const (
	TickStatusUp      TickStatus = "up"
	TickStatusDown    TickStatus = "down"
	TickStatusUnknown TickStatus = "unknown"
)

// Valid reports whether s is one of the known statuses.
func (s TickStatus) Valid() bool {
	switch s {
	case TickStatusUp, TickStatusDown, TickStatusUnknown:
		return true
	}
	return false
}

// Tick is a single point-in-time status observation of a website.
// Ticks are append-only.
type Tick struct {
	ID             string
	WebsiteID      string
	Status         TickStatus
	StatusCode     int
	ResponseTimeMS int64
	CreatedAt      time.Time
}
