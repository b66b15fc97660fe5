// Package ingest implements the catalog ingestion pipeline: pulling track
// descriptors from an external provider, reconciling them against the local
// catalog without duplicating artists/albums/songs, normalizing metadata
// and materializing binary assets into object storage.
package ingest

import "time"

// Status is the terminal state of one descriptor's reconciliation.
type Status string

const (
	// StatusCreated means a new Song row was persisted.
	StatusCreated Status = "created"
	// StatusSkipped means the natural key already existed; re-ingestion is
	// a no-op, not an update.
	StatusSkipped Status = "skipped"
	// StatusSkippedCancelled means the run was cancelled before this
	// descriptor was started.
	StatusSkippedCancelled Status = "skipped_cancelled"
	// StatusFailed means reconciliation failed; Reason carries the cause.
	StatusFailed Status = "failed"
)

// Outcome records what happened to one descriptor. Failures and warnings
// are data, not log lines: callers receive them in the JobReport.
type Outcome struct {
	ExternalID string   `json:"externalId"`
	Rank       int      `json:"rank"`
	Status     Status   `json:"status"`
	SongID     string   `json:"songId,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// JobReport aggregates the outcomes of one ingestion run.
type JobReport struct {
	Tag        string    `json:"tag"`
	Limit      int       `json:"limit"`
	UserID     int64     `json:"userId"`
	ToppedUp   bool      `json:"toppedUp"` // satisfied locally, no external fetch
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Cancelled  int       `json:"cancelled"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Warnings flattens all per-outcome warnings.
func (r *JobReport) Warnings() []string {
	var all []string
	for _, o := range r.Outcomes {
		all = append(all, o.Warnings...)
	}
	return all
}
