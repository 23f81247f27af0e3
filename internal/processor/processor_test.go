package processor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bstardust/gpx-geotagger/internal/photo"
)

// Mock metadata reader
type MockReader struct {
	mock.Mock
}

func (m *MockReader) CaptureTime(path string, offsetSeconds float64) (time.Time, error) {
	args := m.Called(path, offsetSeconds)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockReader) HasGps(path string) bool {
	args := m.Called(path)
	return args.Bool(0)
}

// Mock GPS writer
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteGps(path string, lat, lon float64, elevation *float64) error {
	args := m.Called(path, lat, lon, elevation)
	return args.Error(0)
}

// Standard two-point test track: 10:00Z at (50.0, 8.0, 100m) to 10:10Z at
// (50.1, 8.1, 200m).
const testTrack = `<?xml version="1.0"?>
<gpx version="1.1">
  <trk><trkseg>
    <trkpt lat="50.0" lon="8.0"><ele>100.0</ele><time>2024-06-01T10:00:00Z</time></trkpt>
    <trkpt lat="50.1" lon="8.1"><ele>200.0</ele><time>2024-06-01T10:10:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

func writeTrackFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.gpx")
	require.NoError(t, os.WriteFile(path, []byte(testTrack), 0644))
	return path
}

func newTestProcessor(reader *MockReader, native, external *MockWriter, cb Callbacks) *Processor {
	p := New(reader, native, external, cb)
	p.ExternalAvailable = func() bool { return true }
	return p
}

func record(path string) *photo.Record {
	return &photo.Record{
		Path:        path,
		DisplayName: filepath.Base(path),
		State:       photo.Pending,
	}
}

func elevationNear(want float64) interface{} {
	return mock.MatchedBy(func(e *float64) bool {
		return e != nil && math.Abs(*e-want) < 1e-6
	})
}

func latLonNear(want float64) interface{} {
	return mock.MatchedBy(func(v float64) bool {
		return math.Abs(v-want) < 1e-9
	})
}

func TestProcessBasicInRangeMatch(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	external := new(MockWriter)
	p := newTestProcessor(reader, native, external, Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")

	// EXIF wall clock 12:05 with a +2h camera offset is 10:05 UTC.
	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 7200.0).Return(capture, nil)
	native.On("WriteGps", rec.Path, latLonNear(50.05), latLonNear(8.05), elevationNear(150)).Return(nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec:  600,
		TimeOffsetHours: 2,
	})

	assert.Equal(t, photo.Written, rec.State)
	assert.Empty(t, rec.Diagnostic)
	require.True(t, rec.HasMatch())
	assert.InDelta(t, 50.05, *rec.MatchedLat, 1e-9)
	assert.InDelta(t, 8.05, *rec.MatchedLon, 1e-9)
	require.NotNil(t, rec.MatchedElevation)
	assert.InDelta(t, 150.0, *rec.MatchedElevation, 1e-6)
	native.AssertExpectations(t)
	external.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessOutsideRangeSkips(t *testing.T) {
	reader := new(MockReader)
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	capture := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec: 300,
	})

	assert.Equal(t, photo.Skipped, rec.State)
	assert.Equal(t, "Photo time outside GPX range", rec.Diagnostic)
	assert.False(t, rec.HasMatch())
}

func TestProcessOutsideRangeForcedSnapsToEndpoint(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	p := newTestProcessor(reader, native, new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	capture := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)
	native.On("WriteGps", rec.Path, 50.0, 8.0, elevationNear(100)).Return(nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec:   300,
		ForceInterpolate: true,
	})

	assert.Equal(t, photo.Written, rec.State)
	assert.Equal(t, 50.0, *rec.MatchedLat)
	assert.Equal(t, 8.0, *rec.MatchedLon)
	native.AssertExpectations(t)
}

func TestProcessInsideRangeBeyondThreshold(t *testing.T) {
	// A sparse track: photo falls between points but too far from both.
	sparse := `<?xml version="1.0"?>
<gpx version="1.1">
  <trk><trkseg>
    <trkpt lat="50.0" lon="8.0"><time>2024-06-01T10:00:00Z</time></trkpt>
    <trkpt lat="50.2" lon="8.2"><time>2024-06-01T11:00:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`
	gpxPath := filepath.Join(t.TempDir(), "sparse.gpx")
	require.NoError(t, os.WriteFile(gpxPath, []byte(sparse), 0644))

	reader := new(MockReader)
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(gpxPath))

	rec := record("/photos/a.jpg")
	capture := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec: 300,
	})

	assert.Equal(t, photo.Skipped, rec.State)
	assert.Equal(t, "No GPS match within time threshold", rec.Diagnostic)
}

func TestProcessExistingGpsSkippedWithoutOverwrite(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	p := newTestProcessor(reader, native, new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	rec.HasExistingGps = true

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Skipped, rec.State)
	assert.Equal(t, "Already has GPS data", rec.Diagnostic)
	reader.AssertNotCalled(t, "CaptureTime", mock.Anything, mock.Anything)
	native.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExistingGpsOverwritten(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	p := newTestProcessor(reader, native, new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	rec.HasExistingGps = true

	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)
	native.On("WriteGps", rec.Path, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec:       600,
		OverwriteExistingGps: true,
	})

	assert.Equal(t, photo.Written, rec.State)
	native.AssertExpectations(t)
}

func TestProcessMinimalFormatSkipped(t *testing.T) {
	reader := new(MockReader)
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/image.bmp")

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Skipped, rec.State)
	assert.Equal(t, "No metadata support for this format", rec.Diagnostic)
	reader.AssertNotCalled(t, "CaptureTime", mock.Anything, mock.Anything)
}

func TestProcessNoTimestampSkipped(t *testing.T) {
	reader := new(MockReader)
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	reader.On("CaptureTime", rec.Path, 0.0).Return(time.Time{}, assert.AnError)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Skipped, rec.State)
	assert.Equal(t, "No timestamp found", rec.Diagnostic)
}

func TestProcessExternalToolRouting(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	external := new(MockWriter)
	p := newTestProcessor(reader, native, external, Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.heic")
	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)
	external.On("WriteGps", rec.Path, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Written, rec.State)
	external.AssertExpectations(t)
	native.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessExternalToolMissing(t *testing.T) {
	reader := new(MockReader)
	external := new(MockWriter)
	p := newTestProcessor(reader, new(MockWriter), external, Callbacks{})
	p.ExternalAvailable = func() bool { return false }
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.heic")
	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Failed, rec.State)
	assert.Contains(t, rec.Diagnostic, "exiftool not found")
	external.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessWriterFailure(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	p := newTestProcessor(reader, native, new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)
	native.On("WriteGps", rec.Path, mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Failed, rec.State)
	assert.Equal(t, assert.AnError.Error(), rec.Diagnostic)
}

func TestProcessDryRunWritesNothing(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	external := new(MockWriter)
	p := newTestProcessor(reader, native, external, Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	rec := record("/photos/a.jpg")
	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", rec.Path, 0.0).Return(capture, nil)

	p.Process(context.Background(), []*photo.Record{rec}, Settings{
		MaxTimeDiffSec: 600,
		DryRun:         true,
	})

	assert.Equal(t, photo.Written, rec.State)
	assert.True(t, rec.HasMatch())
	native.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	external.AssertNotCalled(t, "WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessEventOrdering(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)

	var events []string
	cb := Callbacks{
		OnProgress: func(current, total int) {
			events = append(events, "progress")
		},
		OnPhotoDone: func(index int, success bool) {
			events = append(events, "done")
		},
		OnComplete: func(written, total int) {
			events = append(events, "complete")
			assert.Equal(t, 1, written)
			assert.Equal(t, 2, total)
		},
	}

	p := newTestProcessor(reader, native, new(MockWriter), cb)
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	good := record("/photos/a.jpg")
	bad := record("/photos/b.bmp")

	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", good.Path, 0.0).Return(capture, nil)
	native.On("WriteGps", good.Path, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p.Process(context.Background(), []*photo.Record{good, bad}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, []string{"progress", "done", "progress", "done", "complete"}, events)
}

func TestProcessCancellation(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)

	var completed bool
	var p *Processor
	cb := Callbacks{
		OnPhotoDone: func(index int, success bool) {
			// Cancel after the first photo; the second must not start.
			p.Cancel()
		},
		OnComplete: func(written, total int) {
			completed = true
			assert.Equal(t, 1, written)
			assert.Equal(t, 3, total)
		},
	}

	p = newTestProcessor(reader, native, new(MockWriter), cb)
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	records := []*photo.Record{
		record("/photos/a.jpg"),
		record("/photos/b.jpg"),
		record("/photos/c.jpg"),
	}

	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", mock.Anything, 0.0).Return(capture, nil)
	native.On("WriteGps", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	p.Process(context.Background(), records, Settings{MaxTimeDiffSec: 600})

	assert.True(t, completed)
	assert.Equal(t, photo.Written, records[0].State)
	assert.Equal(t, photo.Pending, records[1].State)
	assert.Equal(t, photo.Pending, records[2].State)
}

func TestProcessContextCancellation(t *testing.T) {
	reader := new(MockReader)
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := record("/photos/a.jpg")
	p.Process(ctx, []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, photo.Pending, rec.State)
}

func TestProcessEmptyTrack(t *testing.T) {
	reader := new(MockReader)
	var written, total int
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{
		OnComplete: func(w, n int) { written, total = w, n },
	})

	rec := record("/photos/a.jpg")
	p.Process(context.Background(), []*photo.Record{rec}, Settings{MaxTimeDiffSec: 600})

	assert.Equal(t, 0, written)
	assert.Equal(t, 1, total)
	assert.Equal(t, photo.Pending, rec.State)
}

func TestProcessTerminalStateExclusivity(t *testing.T) {
	reader := new(MockReader)
	native := new(MockWriter)
	p := newTestProcessor(reader, native, new(MockWriter), Callbacks{})
	require.NoError(t, p.LoadGpx(writeTrackFile(t)))

	records := []*photo.Record{
		record("/photos/good.jpg"),
		record("/photos/untimed.jpg"),
		record("/photos/image.bmp"),
		record("/photos/broken.jpg"),
	}

	capture := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	reader.On("CaptureTime", "/photos/good.jpg", 0.0).Return(capture, nil)
	reader.On("CaptureTime", "/photos/untimed.jpg", 0.0).Return(time.Time{}, assert.AnError)
	reader.On("CaptureTime", "/photos/broken.jpg", 0.0).Return(capture, nil)
	native.On("WriteGps", "/photos/good.jpg", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	native.On("WriteGps", "/photos/broken.jpg", mock.Anything, mock.Anything, mock.Anything).
		Return(assert.AnError)

	p.Process(context.Background(), records, Settings{MaxTimeDiffSec: 600})

	for _, rec := range records {
		assert.True(t, rec.Done(), "record %s must end in a terminal state", rec.Path)
		if rec.State == photo.Written {
			assert.True(t, rec.HasMatch(), "written record %s must carry coordinates", rec.Path)
		} else {
			assert.NotEmpty(t, rec.Diagnostic, "record %s needs a diagnostic", rec.Path)
		}
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	assert.Equal(t, 60.0, adaptiveThreshold(10))   // 30 clamps up to 60
	assert.Equal(t, 300.0, adaptiveThreshold(100)) // 3x mean interval
	assert.Equal(t, 600.0, adaptiveThreshold(1000))
}

func TestLoadGpxErrorCallback(t *testing.T) {
	var gotErr error
	p := newTestProcessor(new(MockReader), new(MockWriter), new(MockWriter), Callbacks{
		OnGpxError: func(err error) { gotErr = err },
	})

	err := p.LoadGpx(filepath.Join(t.TempDir(), "missing.gpx"))
	require.Error(t, err)
	assert.Equal(t, err, gotErr)
	assert.Empty(t, p.Track())
}

func TestLoadGpxLoadedCallback(t *testing.T) {
	var points int
	p := newTestProcessor(new(MockReader), new(MockWriter), new(MockWriter), Callbacks{
		OnGpxLoaded: func(n int) { points = n },
	})

	require.NoError(t, p.LoadGpx(writeTrackFile(t)))
	assert.Equal(t, 2, points)
	assert.Len(t, p.Track(), 2)
}

func TestScanPhotos(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.jpg", "notes.txt", "c.bmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	reader := new(MockReader)
	reader.On("HasGps", mock.Anything).Return(false)

	var scanned int
	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{
		OnScanComplete: func(n int) { scanned = n },
	})

	records, err := p.ScanPhotos([]string{dir}, ScanOptions{Concurrency: 2})
	require.NoError(t, err)

	// notes.txt is filtered out of directory walks; bmp stays so it can
	// surface as skipped later.
	require.Len(t, records, 3)
	assert.Equal(t, 3, scanned)
	assert.Equal(t, "a.jpg", records[0].DisplayName)
	assert.Equal(t, "b.jpg", records[1].DisplayName)
	assert.Equal(t, "c.bmp", records[2].DisplayName)

	for _, rec := range records {
		assert.Equal(t, photo.Pending, rec.State)
	}
}

func TestScanPhotosDropsDuplicates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	reader := new(MockReader)
	reader.On("HasGps", mock.Anything).Return(true)

	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})

	records, err := p.ScanPhotos([]string{path, path}, ScanOptions{Concurrency: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].HasExistingGps)
}

func TestScanPhotosRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.jpg"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "nested.jpg"), []byte("x"), 0644))

	reader := new(MockReader)
	reader.On("HasGps", mock.Anything).Return(false)

	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})

	flat, err := p.ScanPhotos([]string{dir}, ScanOptions{Concurrency: 1})
	require.NoError(t, err)
	assert.Len(t, flat, 1)

	deep, err := p.ScanPhotos([]string{dir}, ScanOptions{Recursive: true, Concurrency: 1})
	require.NoError(t, err)
	assert.Len(t, deep, 2)
}

func TestScanPhotosExplicitFileBypassesFilter(t *testing.T) {
	reader := new(MockReader)
	reader.On("HasGps", mock.Anything).Return(false)

	p := newTestProcessor(reader, new(MockWriter), new(MockWriter), Callbacks{})

	// An explicitly listed file is admitted even with an unknown
	// extension; the registry degrades it to a best-effort write.
	records, err := p.ScanPhotos([]string{"/photos/mystery.xyz"}, ScanOptions{Concurrency: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mystery.xyz", records[0].DisplayName)
}
