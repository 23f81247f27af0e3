package exiftool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArgsNorthEast(t *testing.T) {
	args := buildArgs("/photos/shot.heic", 50.05, 8.05, nil)

	assert.Equal(t, []string{
		"-overwrite_original",
		"-GPSLatitude=50.05000000",
		"-GPSLatitudeRef=N",
		"-GPSLongitude=8.05000000",
		"-GPSLongitudeRef=E",
		"/photos/shot.heic",
	}, args)
}

func TestBuildArgsSouthWest(t *testing.T) {
	args := buildArgs("/photos/shot.heic", -33.8568, -70.6483, nil)

	assert.Contains(t, args, "-GPSLatitude=33.85680000")
	assert.Contains(t, args, "-GPSLatitudeRef=S")
	assert.Contains(t, args, "-GPSLongitude=70.64830000")
	assert.Contains(t, args, "-GPSLongitudeRef=W")
}

func TestBuildArgsWithElevation(t *testing.T) {
	alt := 123.456
	args := buildArgs("/photos/shot.heic", 50, 8, &alt)

	assert.Contains(t, args, "-GPSAltitude=123.46")
	assert.Contains(t, args, "-GPSAltitudeRef=Above Sea Level")
}

func TestBuildArgsBelowSeaLevel(t *testing.T) {
	alt := -12.5
	args := buildArgs("/photos/shot.heic", 50, 8, &alt)

	assert.Contains(t, args, "-GPSAltitude=12.50")
	assert.Contains(t, args, "-GPSAltitudeRef=Below Sea Level")
}

func TestBuildArgsPathLast(t *testing.T) {
	alt := 1.0
	args := buildArgs("/photos/shot.heic", 50, 8, &alt)
	assert.Equal(t, "/photos/shot.heic", args[len(args)-1])
}
