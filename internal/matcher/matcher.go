// Package matcher maps photo capture instants to positions on a GPS track.
package matcher

import (
	"sort"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/gpx"
)

// Position is an interpolated point on the track. Elevation is present only
// when both bracketing track points carry one.
type Position struct {
	Latitude  float64
	Longitude float64
	Elevation *float64
}

// Matcher finds the track position for a given instant, subject to a
// tolerance threshold. The track must be sorted by time; an empty track
// makes every match fail.
type Matcher struct {
	track            gpx.Track
	maxTimeDiff      float64 // seconds
	forceInterpolate bool
}

// New creates a matcher over a time-sorted track. maxTimeDiffSec bounds how
// far (in seconds) an instant may sit from the nearest sample unless
// forceInterpolate is set.
func New(track gpx.Track, maxTimeDiffSec float64, forceInterpolate bool) *Matcher {
	return &Matcher{
		track:            track,
		maxTimeDiff:      maxTimeDiffSec,
		forceInterpolate: forceInterpolate,
	}
}

// Match returns the position for the given instant, linearly interpolated
// between the two bracketing track points. Instants before the first or
// after the last point snap to that endpoint when within tolerance.
func (m *Matcher) Match(t time.Time) (Position, bool) {
	if len(m.track) == 0 {
		return Position{}, false
	}

	// First index whose point lies strictly after t; everything before it
	// is <= t.
	idx := sort.Search(len(m.track), func(i int) bool {
		return m.track[i].Time.After(t)
	})

	if idx == 0 {
		// Instant precedes the whole track.
		first := m.track[0]
		diff := first.Time.Sub(t).Seconds()
		if m.forceInterpolate || diff <= m.maxTimeDiff {
			return pointPosition(first), true
		}
		return Position{}, false
	}

	if idx == len(m.track) {
		// Instant follows the whole track.
		last := m.track[len(m.track)-1]
		diff := t.Sub(last.Time).Seconds()
		if m.forceInterpolate || diff <= m.maxTimeDiff {
			return pointPosition(last), true
		}
		return Position{}, false
	}

	before := m.track[idx-1]
	after := m.track[idx]

	diffBefore := t.Sub(before.Time).Seconds()
	diffAfter := after.Time.Sub(t).Seconds()

	if !m.forceInterpolate && minFloat(diffBefore, diffAfter) > m.maxTimeDiff {
		return Position{}, false
	}

	total := after.Time.Sub(before.Time).Seconds()
	if total <= 0 {
		// Exact tie; duplicates cannot cross the partition so this is
		// deterministic.
		return pointPosition(before), true
	}

	ratio := diffBefore / total

	pos := Position{
		Latitude:  before.Latitude + (after.Latitude-before.Latitude)*ratio,
		Longitude: before.Longitude + (after.Longitude-before.Longitude)*ratio,
	}
	if before.Elevation != nil && after.Elevation != nil {
		ele := *before.Elevation + (*after.Elevation-*before.Elevation)*ratio
		pos.Elevation = &ele
	}
	return pos, true
}

// InsideRange reports whether the instant lies within the closed interval
// spanned by the track. Used to tell "outside track range" apart from
// "inside the track but no sample close enough".
func (m *Matcher) InsideRange(t time.Time) bool {
	if len(m.track) == 0 {
		return false
	}
	start, end := m.track.Bounds()
	return !t.Before(start) && !t.After(end)
}

// TimeRange returns the track's first and last timestamps.
func (m *Matcher) TimeRange() (time.Time, time.Time) {
	return m.track.Bounds()
}

func pointPosition(p gpx.TrackPoint) Position {
	pos := Position{Latitude: p.Latitude, Longitude: p.Longitude}
	if p.Elevation != nil {
		ele := *p.Elevation
		pos.Elevation = &ele
	}
	return pos
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
