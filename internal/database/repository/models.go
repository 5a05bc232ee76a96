package repository

import "time"

// ActivityEntry is one line of the local journal of mutating requests. Only metadata is
// kept; record contents are never cached.
type ActivityEntry struct {
	ID          string
	Action      string
	RecordID    string
	Instrumento string
	Outcome     string
	Detail      string
	RequestID   string
	RequestedAt time.Time
}
