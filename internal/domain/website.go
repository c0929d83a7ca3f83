package domain

import "time"

// Website is a monitored URL owned by exactly one user.
type Website struct {
	ID        string
	URL       string
	OwnerID   string
	CreatedAt time.Time

	// LatestTick is the most recent observation, nil until one is recorded.
	LatestTick *Tick
}
