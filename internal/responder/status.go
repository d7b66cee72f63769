package responder

import "time"

type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Status is the opaque view of the loop handed to callers. It never carries
// credentials.
type Status struct {
	State      State     `json:"status"`
	RunID      string    `json:"run_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	Ticks      int       `json:"ticks"`
	Replied    int       `json:"replied"`
	Skipped    int       `json:"skipped"`
	LastTickAt time.Time `json:"last_tick_at,omitzero"`
	NextTickAt time.Time `json:"next_tick_at,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
}

// TickResult counts what one tick did.
type TickResult struct {
	Seen    int
	Replied int
	Skipped int
}
