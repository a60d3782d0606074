package models

import "time"

// DefaultCloseTimeOffset is noon, in seconds after midnight UTC.
const DefaultCloseTimeOffset int64 = 43200

// CreationDraft holds the not-yet-submitted parameters of a new voting contract.
type CreationDraft struct {
	Title      string    `json:"title"`
	Candidates []string  `json:"candidates"`
	Voters     []string  `json:"voters"`
	CloseDate  time.Time `json:"close_date"`
	// CloseTimeOffset is the time of day of the close time, in seconds.
	CloseTimeOffset int64 `json:"close_time_offset"`
}

// NewCreationDraft returns the empty form: closing today at noon UTC.
func NewCreationDraft(now time.Time) CreationDraft {
	now = now.UTC()
	return CreationDraft{
		Candidates:      []string{},
		Voters:          []string{},
		CloseDate:       time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		CloseTimeOffset: DefaultCloseTimeOffset,
	}
}
