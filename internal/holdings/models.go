package holdings

import (
	"time"

	"holdings-server/internal/metadata"
)

type LoadState string

const (
	LoadStateIdle     LoadState = "idle"
	LoadStateLoading  LoadState = "loading"
	LoadStateDone     LoadState = "done"
	LoadStateFailed   LoadState = "failed"
	LoadStateCanceled LoadState = "canceled"
)

// Status describes the last load of a character's holdings
type Status struct {
	CharacterID int64      `json:"character_id"`
	State       LoadState  `json:"state"`
	Done        bool       `json:"done"`
	Nodes       int        `json:"nodes"`
	Version     uint64     `json:"version"`
	Pending     int        `json:"pending_metadata"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Summary counts what one load brought in
type Summary struct {
	Items    int             `json:"items"`
	Orders   int             `json:"orders"`
	Prices   int             `json:"prices"`
	Linked   int             `json:"linked"`
	Metadata metadata.Report `json:"metadata"`
}
