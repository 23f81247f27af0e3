// Package gpstag writes GPS EXIF tags into photo files in-process.
//
// JPEG and PNG containers are rewritten directly. Other containers are
// reported as unsupported; BMFF-family formats go through the external
// exiftool writer instead, and proprietary RAWs carry a registry advisory
// explaining the risk.
package gpstag

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"

	"github.com/bstardust/gpx-geotagger/internal/format"
	"github.com/bstardust/gpx-geotagger/internal/logger"
)

// gpsVersion is GPSVersionID 2.3.0.0.
var gpsVersion = []byte{2, 3, 0, 0}

// Writer persists GPS tags using the in-process EXIF stack.
type Writer struct{}

// NewWriter returns the native GPS writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteGps sets the GPS IFD tags for the given coordinates and rewrites the
// file in place. Elevation may be nil. Errors for risky or metadata-less
// formats are enriched with the registry advisory.
func (w *Writer) WriteGps(path string, lat, lon float64, elevation *float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}

	rewritten, err := w.rewrite(path, data, lat, lon, elevation)
	if err != nil {
		return enrichError(path, err)
	}

	if err := replaceFile(path, rewritten); err != nil {
		return enrichError(path, err)
	}

	logger.Info("Wrote GPS to %s: %.6f, %.6f", path, lat, lon)
	return nil
}

func (w *Writer) rewrite(path string, data []byte, lat, lon float64, elevation *float64) ([]byte, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	if jmp.LooksLikeFormat(data) {
		return rewriteJpeg(jmp, data, lat, lon, elevation)
	}

	pmp := pngstructure.NewPngMediaParser()
	if pmp.LooksLikeFormat(data) {
		return rewritePng(pmp, data, lat, lon, elevation)
	}

	return nil, fmt.Errorf("unsupported container for in-process GPS write: %s", format.Ext(path))
}

func rewriteJpeg(jmp *jpegstructure.JpegMediaParser, data []byte, lat, lon float64, elevation *float64) ([]byte, error) {
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JPEG structure: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		// No EXIF segment yet; start from an empty IFD tree.
		rootIb, err = newRootBuilder()
		if err != nil {
			return nil, err
		}
	}

	if err := setGpsTags(rootIb, lat, lon, elevation); err != nil {
		return nil, err
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to update EXIF segment: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := sl.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func rewritePng(pmp *pngstructure.PngMediaParser, data []byte, lat, lon float64, elevation *float64) ([]byte, error) {
	intfc, err := pmp.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PNG structure: %w", err)
	}
	cs := intfc.(*pngstructure.ChunkSlice)

	rootIb, err := cs.ConstructExifBuilder()
	if err != nil {
		rootIb, err = newRootBuilder()
		if err != nil {
			return nil, err
		}
	}

	if err := setGpsTags(rootIb, lat, lon, elevation); err != nil {
		return nil, err
	}
	if err := cs.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to update eXIf chunk: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := cs.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to serialize PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize IFD mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	if err := exif.LoadStandardTags(ti); err != nil {
		return nil, fmt.Errorf("failed to load standard tags: %w", err)
	}
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

// setGpsTags fills the GPS IFD. The altitude reference is written as the
// byte-typed integer 0/1 per the EXIF specification, not ASCII digits.
func setGpsTags(rootIb *exif.IfdBuilder, lat, lon float64, elevation *float64) error {
	gpsIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/GPSInfo")
	if err != nil {
		return fmt.Errorf("failed to create GPS IFD: %w", err)
	}

	latRef := "N"
	if lat < 0 {
		latRef = "S"
	}
	lonRef := "E"
	if lon < 0 {
		lonRef = "W"
	}

	tags := []struct {
		name  string
		value interface{}
	}{
		{"GPSVersionID", gpsVersion},
		{"GPSLatitudeRef", latRef},
		{"GPSLatitude", dmsRationals(lat)},
		{"GPSLongitudeRef", lonRef},
		{"GPSLongitude", dmsRationals(lon)},
	}

	if elevation != nil {
		altRef := byte(0)
		if *elevation < 0 {
			altRef = 1
		}
		alt := math.Abs(*elevation)
		tags = append(tags,
			struct {
				name  string
				value interface{}
			}{"GPSAltitudeRef", []byte{altRef}},
			struct {
				name  string
				value interface{}
			}{"GPSAltitude", []exifcommon.Rational{{
				Numerator:   uint32(alt * 100),
				Denominator: 100,
			}}},
		)
	}

	for _, tag := range tags {
		if err := gpsIb.SetStandardWithName(tag.name, tag.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", tag.name, err)
		}
	}
	return nil
}

// dmsRationals encodes absolute decimal degrees as the EXIF
// degrees/minutes/seconds rational triple. Degrees and minutes are exact;
// seconds are fixed at 1/10000 precision.
func dmsRationals(decimal float64) []exifcommon.Rational {
	decimal = math.Abs(decimal)

	degrees := math.Floor(decimal)
	minutesF := (decimal - degrees) * 60
	minutes := math.Floor(minutesF)
	seconds := (minutesF - minutes) * 60

	return []exifcommon.Rational{
		{Numerator: uint32(degrees), Denominator: 1},
		{Numerator: uint32(minutes), Denominator: 1},
		{Numerator: uint32(seconds * 10000), Denominator: 10000},
	}
}

// decodeDms converts the rational triple back to decimal degrees.
func decodeDms(dms []exifcommon.Rational) float64 {
	deg := float64(dms[0].Numerator) / float64(dms[0].Denominator)
	min := float64(dms[1].Numerator) / float64(dms[1].Denominator)
	sec := float64(dms[2].Numerator) / float64(dms[2].Denominator)
	return deg + min/60 + sec/3600
}

// enrichError appends the registry advisory for formats where a failed
// write deserves more context than the raw library error.
func enrichError(path string, err error) error {
	info := format.Lookup(path)
	ext := format.Ext(path)

	switch info.Tier {
	case format.DangerousRaw:
		return fmt.Errorf("failed to write GPS to %s RAW: %w (%s)", ext, err, info.Advisory)
	case format.Minimal:
		return fmt.Errorf("cannot write metadata to %s format: %w (%s)", ext, err, info.Advisory)
	default:
		return fmt.Errorf("failed to write GPS: %w", err)
	}
}

func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".geotag-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		os.Chmod(tmpName, info.Mode())
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	return nil
}
