// Package photo holds the per-file record that travels through the
// geotagging pipeline.
package photo

import "time"

// State is the processing state of a photo.
type State int

const (
	// Pending means the photo has not been processed yet.
	Pending State = iota
	// InProgress means the photo is currently being processed.
	InProgress
	// Written means GPS data was matched and written (or would have been,
	// on a dry run).
	Written
	// Skipped means the photo was left untouched, with a diagnostic.
	Skipped
	// Failed means a write was attempted and failed.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in-progress"
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is one photo in the batch. It is produced by the scanner and
// mutated only by the processor that owns the iteration.
type Record struct {
	Path           string
	DisplayName    string
	CaptureTime    *time.Time
	HasExistingGps bool

	MatchedLat       *float64
	MatchedLon       *float64
	MatchedElevation *float64

	State      State
	Diagnostic string
}

// Done reports whether the record has reached a terminal state.
func (r *Record) Done() bool {
	return r.State == Written || r.State == Skipped || r.State == Failed
}

// HasMatch reports whether coordinates were matched for this photo.
func (r *Record) HasMatch() bool {
	return r.MatchedLat != nil && r.MatchedLon != nil
}
