// Package processor drives the geotagging pipeline: load a track, scan
// photos into records, then match and write GPS tags photo by photo.
package processor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/exiftool"
	"github.com/bstardust/gpx-geotagger/internal/format"
	"github.com/bstardust/gpx-geotagger/internal/gpx"
	"github.com/bstardust/gpx-geotagger/internal/logger"
	"github.com/bstardust/gpx-geotagger/internal/matcher"
	"github.com/bstardust/gpx-geotagger/internal/photo"
	"github.com/bstardust/gpx-geotagger/internal/worker"
)

// Adaptive threshold bounds, in seconds.
const (
	minAdaptiveThreshold = 60
	maxAdaptiveThreshold = 600
)

// Settings controls one processing run.
type Settings struct {
	// MaxTimeDiffSec bounds the photo-to-trackpoint gap; <= 0 selects the
	// adaptive threshold derived from the track's sampling interval.
	MaxTimeDiffSec float64
	// TimeOffsetHours converts camera wall-clock time to UTC (camera ahead
	// of UTC means a positive offset).
	TimeOffsetHours float64
	// OverwriteExistingGps allows replacing GPS tags already present.
	OverwriteExistingGps bool
	// ForceInterpolate matches photos regardless of the time threshold.
	ForceInterpolate bool
	// DryRun runs the full pipeline but skips the file writes.
	DryRun bool
}

// ScanOptions controls photo discovery.
type ScanOptions struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// Concurrency is the number of parallel metadata probes during the
	// scan. Processing itself is sequential.
	Concurrency int
}

// GpsWriter persists GPS tags for one file.
type GpsWriter interface {
	WriteGps(path string, lat, lon float64, elevation *float64) error
}

// MetadataReader extracts capture metadata from photo files.
type MetadataReader interface {
	CaptureTime(path string, offsetSeconds float64) (time.Time, error)
	HasGps(path string) bool
}

// Callbacks is the event surface consumed by a UI or test harness. All
// callbacks are invoked synchronously on the processing goroutine; nil
// entries are ignored.
type Callbacks struct {
	OnGpxLoaded    func(pointCount int)
	OnGpxError     func(err error)
	OnScanComplete func(count int)
	OnProgress     func(current, total int)
	OnPhotoDone    func(index int, success bool)
	OnComplete     func(written, total int)
}

// Processor owns the pipeline for one photo batch. Concurrent Process
// calls on the same record collection are not supported; a caller wrapping
// it in background concurrency serializes access itself.
type Processor struct {
	reader   MetadataReader
	native   GpsWriter
	external GpsWriter
	// ExternalAvailable gates the external-tool writer. Defaults to the
	// cached exiftool PATH lookup.
	ExternalAvailable func() bool

	callbacks Callbacks

	track         gpx.Track
	gpxPath       string
	stopRequested atomic.Bool
}

// New creates a processor with the given collaborators.
func New(reader MetadataReader, native, external GpsWriter, callbacks Callbacks) *Processor {
	return &Processor{
		reader:            reader,
		native:            native,
		external:          external,
		ExternalAvailable: exiftool.IsAvailable,
		callbacks:         callbacks,
	}
}

// Track returns the currently loaded track.
func (p *Processor) Track() gpx.Track {
	return p.track
}

// GpxPath returns the path of the currently loaded GPX file.
func (p *Processor) GpxPath() string {
	return p.gpxPath
}

// LoadGpx parses a GPX file and keeps its track for matching. An empty or
// unparseable file reports through OnGpxError and leaves no track loaded.
func (p *Processor) LoadGpx(path string) error {
	track, err := gpx.Parse(path)
	if err == nil && len(track) == 0 {
		err = fmt.Errorf("no usable trackpoints in %s", path)
	}
	if err != nil {
		if p.callbacks.OnGpxError != nil {
			p.callbacks.OnGpxError(err)
		}
		return err
	}

	p.track = track
	p.gpxPath = path

	start, end := track.Bounds()
	logger.Info("Loaded GPX with %d trackpoints (%s .. %s), avg interval %.1fs",
		len(track),
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
		gpx.AverageInterval(track))

	if p.callbacks.OnGpxLoaded != nil {
		p.callbacks.OnGpxLoaded(len(track))
	}
	return nil
}

// ScanPhotos expands the given paths into photo records in a stable order.
// Directory arguments are walked for known photo extensions; explicitly
// listed files are always admitted. Duplicates are dropped. The
// GPS-present probe runs on a worker pool since it is read-only.
func (p *Processor) ScanPhotos(paths []string, opts ScanOptions) ([]*photo.Record, error) {
	files, err := collectFiles(paths, opts.Recursive)
	if err != nil {
		return nil, err
	}

	records := make([]*photo.Record, 0, len(files))
	seen := make(map[string]bool)
	duplicates := 0

	for _, path := range files {
		key := filepath.Clean(path)
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true

		records = append(records, &photo.Record{
			Path:        path,
			DisplayName: filepath.Base(path),
			State:       photo.Pending,
		})
	}

	if duplicates > 0 {
		logger.Info("Skipped %d duplicate file(s)", duplicates)
	}

	pool := worker.NewPool(opts.Concurrency)
	for _, rec := range records {
		rec := rec
		pool.Submit(func() {
			rec.HasExistingGps = p.reader.HasGps(rec.Path)
		})
	}
	pool.Wait()

	logger.Info("Scanned %d photo(s)", len(records))
	if p.callbacks.OnScanComplete != nil {
		p.callbacks.OnScanComplete(len(records))
	}
	return records, nil
}

// Process runs the pipeline over the records in order, mutating each to a
// terminal state. Cancellation (via ctx or Cancel) is honored at iteration
// boundaries; OnComplete always fires with the tally of work done.
func (p *Processor) Process(ctx context.Context, records []*photo.Record, settings Settings) {
	total := len(records)

	if len(p.track) == 0 {
		logger.Warn("No GPX trackpoints loaded")
		if p.callbacks.OnComplete != nil {
			p.callbacks.OnComplete(0, total)
		}
		return
	}

	p.stopRequested.Store(false)

	maxTimeDiff := settings.MaxTimeDiffSec
	if maxTimeDiff <= 0 {
		maxTimeDiff = adaptiveThreshold(gpx.AverageInterval(p.track))
	}

	m := matcher.New(p.track, maxTimeDiff, settings.ForceInterpolate)
	offsetSeconds := settings.TimeOffsetHours * 3600

	logger.Info("Processing %d photo(s): maxTimeDiff=%.0fs timeOffset=%.1fh overwrite=%t forceInterpolate=%t dryRun=%t",
		total, maxTimeDiff, settings.TimeOffsetHours,
		settings.OverwriteExistingGps, settings.ForceInterpolate, settings.DryRun)

	written := 0

	for i, rec := range records {
		if ctx.Err() != nil || p.stopRequested.Load() {
			logger.Info("Processing stopped")
			break
		}

		p.emitProgress(i+1, total)
		rec.State = photo.InProgress

		info := format.Lookup(rec.Path)

		if info.Tier == format.Minimal {
			p.skip(rec, i, "No metadata support for this format")
			continue
		}

		if rec.HasExistingGps && !settings.OverwriteExistingGps {
			p.skip(rec, i, "Already has GPS data")
			continue
		}

		captureTime, err := p.reader.CaptureTime(rec.Path, offsetSeconds)
		if err != nil {
			logger.Debug("No timestamp for %s: %v", rec.Path, err)
			p.skip(rec, i, "No timestamp found")
			continue
		}
		ts := captureTime
		rec.CaptureTime = &ts

		pos, ok := m.Match(captureTime)
		if !ok {
			if m.InsideRange(captureTime) {
				p.skip(rec, i, "No GPS match within time threshold")
			} else {
				p.skip(rec, i, "Photo time outside GPX range")
			}
			continue
		}

		lat, lon := pos.Latitude, pos.Longitude
		rec.MatchedLat = &lat
		rec.MatchedLon = &lon
		rec.MatchedElevation = pos.Elevation

		if !settings.DryRun {
			if err := p.write(rec.Path, info, pos); err != nil {
				p.fail(rec, i, err.Error())
				continue
			}
		} else {
			logger.Debug("DRY RUN: would write %.6f, %.6f to %s", lat, lon, rec.Path)
		}

		rec.State = photo.Written
		rec.Diagnostic = ""
		written++
		p.emitPhotoDone(i, true)
	}

	logger.Info("Processing complete: %d/%d photo(s) updated", written, total)
	if p.callbacks.OnComplete != nil {
		p.callbacks.OnComplete(written, total)
	}
}

// Cancel requests a stop; the current photo finishes and iteration ends at
// the next boundary.
func (p *Processor) Cancel() {
	p.stopRequested.Store(true)
}

// write routes the record to the native or external writer by tier.
func (p *Processor) write(path string, info format.Info, pos matcher.Position) error {
	if info.Tier == format.NeedsExternalTool {
		if p.ExternalAvailable == nil || !p.ExternalAvailable() {
			return fmt.Errorf("exiftool not found - install it to write to this format")
		}
		return p.external.WriteGps(path, pos.Latitude, pos.Longitude, pos.Elevation)
	}
	return p.native.WriteGps(path, pos.Latitude, pos.Longitude, pos.Elevation)
}

func (p *Processor) skip(rec *photo.Record, index int, diagnostic string) {
	rec.State = photo.Skipped
	rec.Diagnostic = diagnostic
	p.emitPhotoDone(index, false)
}

func (p *Processor) fail(rec *photo.Record, index int, diagnostic string) {
	rec.State = photo.Failed
	rec.Diagnostic = diagnostic
	logger.Error("Failed to geotag %s: %s", rec.Path, diagnostic)
	p.emitPhotoDone(index, false)
}

func (p *Processor) emitProgress(current, total int) {
	if p.callbacks.OnProgress != nil {
		p.callbacks.OnProgress(current, total)
	}
}

func (p *Processor) emitPhotoDone(index int, success bool) {
	if p.callbacks.OnPhotoDone != nil {
		p.callbacks.OnPhotoDone(index, success)
	}
}

// adaptiveThreshold derives the tolerance from the track's mean sampling
// interval, clamped to [60s, 600s].
func adaptiveThreshold(averageInterval float64) float64 {
	threshold := averageInterval * 3
	if threshold < minAdaptiveThreshold {
		return minAdaptiveThreshold
	}
	if threshold > maxAdaptiveThreshold {
		return maxAdaptiveThreshold
	}
	return threshold
}

// collectFiles expands the argument list. Files are taken as-is (in the
// order given); directories are walked for registry-known extensions.
func collectFiles(paths []string, recursive bool) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			// Treat unstattable paths as files; the pipeline will surface
			// the error when it tries to read them.
			files = append(files, path)
			continue
		}

		var found []string
		walkErr := filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !recursive && entry != path {
					return fs.SkipDir
				}
				return nil
			}
			if format.Known(entry) {
				found = append(found, entry)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", path, walkErr)
		}

		sort.Strings(found)
		files = append(files, found...)
	}

	return files, nil
}
