// Package report writes a JSON artifact of per-photo outcomes. The report
// is an output of the run, not pipeline state; nothing reads it back.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/logger"
	"github.com/bstardust/gpx-geotagger/internal/photo"
)

// Entry is the recorded outcome for one photo.
type Entry struct {
	Path        string     `json:"path"`
	DisplayName string     `json:"displayName"`
	State       string     `json:"state"`
	Diagnostic  string     `json:"diagnostic,omitempty"`
	CaptureTime *time.Time `json:"captureTime,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Elevation   *float64   `json:"elevation,omitempty"`
}

// Report is the full run summary.
type Report struct {
	GpxFile     string    `json:"gpxFile"`
	GeneratedAt time.Time `json:"generatedAt"`
	Written     int       `json:"written"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Photos      []Entry   `json:"photos"`
}

// Build assembles a report from the processed records.
func Build(gpxPath string, records []*photo.Record) *Report {
	r := &Report{
		GpxFile:     gpxPath,
		GeneratedAt: time.Now().UTC(),
		Photos:      make([]Entry, 0, len(records)),
	}

	for _, rec := range records {
		switch rec.State {
		case photo.Written:
			r.Written++
		case photo.Skipped:
			r.Skipped++
		case photo.Failed:
			r.Failed++
		}

		r.Photos = append(r.Photos, Entry{
			Path:        rec.Path,
			DisplayName: rec.DisplayName,
			State:       rec.State.String(),
			Diagnostic:  rec.Diagnostic,
			CaptureTime: rec.CaptureTime,
			Latitude:    rec.MatchedLat,
			Longitude:   rec.MatchedLon,
			Elevation:   rec.MatchedElevation,
		})
	}

	return r
}

// Save writes the report as indented JSON, creating parent directories as
// needed.
func (r *Report) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	logger.Info("Saved report with %d entries to %s", len(r.Photos), path)
	return nil
}
