// Package gpx reads GPX 1.1 track files into time-sorted point sequences.
//
// Only the <gpx>/<trk>/<trkseg>/<trkpt> subtree is consulted; waypoints,
// routes and extensions are ignored. Points with identical timestamps are
// kept in file order (stable sort), so which duplicate brackets a photo
// instant depends on the order they appear in the file.
package gpx

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/logger"
)

// fallbackInterval is used when a track has too few points to derive a
// meaningful sampling interval.
const fallbackInterval = 300.0

// TrackPoint is a single timestamped position. Elevation is optional and
// may be negative (below sea level).
type TrackPoint struct {
	Time      time.Time
	Latitude  float64
	Longitude float64
	Elevation *float64
}

// Valid reports whether the point carries a usable timestamp and
// coordinates within range.
func (p TrackPoint) Valid() bool {
	if p.Time.IsZero() {
		return false
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return false
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return false
	}
	return true
}

// Track is an ordered sequence of valid points, non-decreasing in time.
type Track []TrackPoint

// Bounds returns the first and last timestamp of the track. Both are zero
// for an empty track.
func (t Track) Bounds() (start, end time.Time) {
	if len(t) == 0 {
		return time.Time{}, time.Time{}
	}
	return t[0].Time, t[len(t)-1].Time
}

// XML mapping for the track subtree. Unknown elements are dropped by the
// decoder, which takes care of <wpt>, <rte> and extensions.
type gpxDocument struct {
	Tracks []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Time string   `xml:"time"`
	Ele  *float64 `xml:"ele"`
}

// Parse reads a GPX file and returns its track points sorted by timestamp.
// Points without a parseable timestamp or with out-of-range coordinates are
// dropped. On any file or XML error the returned track is empty.
func Parse(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file: %w", err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) (Track, error) {
	dec := xml.NewDecoder(r)

	root, err := findRoot(dec)
	if err != nil {
		return nil, err
	}

	var doc gpxDocument
	if err := dec.DecodeElement(&doc, root); err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}

	var track Track
	dropped := 0
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				point := TrackPoint{
					Latitude:  pt.Lat,
					Longitude: pt.Lon,
					Elevation: pt.Ele,
				}
				if ts, ok := parseTime(pt.Time); ok {
					point.Time = ts
				}
				if !point.Valid() {
					dropped++
					continue
				}
				track = append(track, point)
			}
		}
	}

	sort.SliceStable(track, func(i, j int) bool {
		return track[i].Time.Before(track[j].Time)
	})

	if dropped > 0 {
		logger.Debug("Dropped %d trackpoint(s) without a valid position or timestamp", dropped)
	}
	return track, nil
}

// findRoot skips leading prolog tokens and verifies the document root.
func findRoot(dec *xml.Decoder) (*xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse GPX file: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != "gpx" {
				return nil, fmt.Errorf("invalid GPX file: missing <gpx> root element")
			}
			return &start, nil
		}
	}
}

// parseTime accepts ISO 8601 (the GPX norm) and falls back to a plain
// "yyyy-MM-dd HH:mm:ss" form seen in some logger exports, read as UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), true
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), true
	}
	return time.Time{}, false
}

// AverageInterval returns the mean positive gap between successive points
// in seconds, or a 5 minute fallback when there are not enough samples.
func AverageInterval(track Track) float64 {
	if len(track) < 2 {
		return fallbackInterval
	}

	total := 0.0
	count := 0
	for i := 1; i < len(track); i++ {
		gap := track[i].Time.Sub(track[i-1].Time).Seconds()
		if gap > 0 {
			total += gap
			count++
		}
	}
	if count == 0 {
		return fallbackInterval
	}
	return total / float64(count)
}
