// Package exif reads capture metadata from photo files.
package exif

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

// EXIF timestamps carry no zone information.
const exifTimeLayout = "2006:01:02 15:04:05"

// Capture-time tags in priority order.
var dateFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Reader extracts capture times and GPS presence from photo files.
type Reader struct{}

// NewReader returns a metadata reader backed by the in-process EXIF parser.
func NewReader() *Reader {
	return &Reader{}
}

// CaptureTime returns the photo's capture instant in UTC. The EXIF
// wall-clock value is interpreted in the camera's local frame and
// offsetSeconds is subtracted to normalize it (camera ahead of UTC means a
// positive offset).
func (r *Reader) CaptureTime(path string, offsetSeconds float64) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("no EXIF data found: %w", err)
	}

	for _, field := range dateFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		value, err := tag.StringVal()
		if err != nil {
			continue
		}
		ts, err := time.ParseInLocation(exifTimeLayout, value, time.UTC)
		if err != nil {
			continue
		}
		return applyOffset(ts, offsetSeconds), nil
	}

	return time.Time{}, fmt.Errorf("no valid timestamp found in EXIF")
}

// HasGps reports whether the photo carries both GPS latitude and longitude
// tags. Read errors are treated as "no GPS"; the write path surfaces the
// underlying failure instead.
func (r *Reader) HasGps(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return false
	}

	if _, err := x.Get(exif.GPSLatitude); err != nil {
		return false
	}
	if _, err := x.Get(exif.GPSLongitude); err != nil {
		return false
	}
	return true
}

func applyOffset(ts time.Time, offsetSeconds float64) time.Time {
	if offsetSeconds == 0 {
		return ts
	}
	return ts.Add(-time.Duration(offsetSeconds * float64(time.Second)))
}
