// Package progress tracks and reports geotagging progress.
package progress

import (
	"sync"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/logger"
)

// Reporter tallies per-photo outcomes and periodically logs progress. It
// is driven from the orchestrator's callback surface.
type Reporter struct {
	mu             sync.Mutex
	total          int
	written        int
	skipped        int
	failed         int
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration
}

// New creates a progress reporter.
func New() *Reporter {
	return &Reporter{
		updateInterval: 2 * time.Second,
	}
}

// Start resets the reporter for a batch of the given size.
func (r *Reporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total = total
	r.written = 0
	r.skipped = 0
	r.failed = 0
	r.startTime = time.Now()
	r.lastUpdateTime = time.Now()

	logger.Info("Processing %d photo(s)", total)
}

// Written records a successfully geotagged photo.
func (r *Reporter) Written(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.written++
	r.update()
}

// Skipped records a photo left untouched.
func (r *Reporter) Skipped(path string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.skipped++
	r.update()
}

// Failed records a photo whose write failed.
func (r *Reporter) Failed(path string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed++
	r.update()
}

// Finish logs the final tally.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := time.Since(r.startTime)

	logger.Info("Geotagging complete: %d/%d written, %d skipped, %d failed in %s",
		r.written, r.total, r.skipped, r.failed, duration.Round(time.Second))
}

// Counts returns the current written/skipped/failed tallies.
func (r *Reporter) Counts() (written, skipped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.written, r.skipped, r.failed
}

func (r *Reporter) update() {
	now := time.Now()
	if now.Sub(r.lastUpdateTime) < r.updateInterval {
		return
	}

	r.lastUpdateTime = now
	processed := r.written + r.skipped + r.failed
	if processed == 0 || r.total == 0 {
		return
	}

	percentage := float64(processed) / float64(r.total) * 100

	var eta string
	if processed > 0 {
		perPhoto := now.Sub(r.startTime) / time.Duration(processed)
		remaining := perPhoto * time.Duration(r.total-processed)
		eta = remaining.Round(time.Second).String()
	} else {
		eta = "unknown"
	}

	logger.Info("Progress: %.1f%% (%d/%d, %d written, %d skipped, %d failed) ETA: %s",
		percentage, processed, r.total, r.written, r.skipped, r.failed, eta)
}
