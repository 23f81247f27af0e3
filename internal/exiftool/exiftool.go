// Package exiftool writes GPS tags by delegating to an external exiftool
// binary. BMFF-family containers (HEIC, AVIF, CR3, JXL) cannot be rewritten
// by the in-process EXIF stack, so those files go through here.
package exiftool

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bstardust/gpx-geotagger/internal/logger"
)

// defaultTimeout bounds a single exiftool invocation.
const defaultTimeout = 30 * time.Second

var (
	lookupOnce sync.Once
	binaryPath string
	lookupErr  error
)

// IsAvailable reports whether exiftool can be found on PATH. The lookup
// runs once per process and is cached.
func IsAvailable() bool {
	resolve()
	return lookupErr == nil
}

func resolve() {
	lookupOnce.Do(func() {
		binaryPath, lookupErr = exec.LookPath("exiftool")
		if lookupErr != nil {
			logger.Warn("exiftool not found in PATH")
			return
		}
		logger.Info("Found exiftool at %s", binaryPath)
	})
}

// Writer invokes exiftool as a child process per write.
type Writer struct {
	// Timeout is the wall-clock deadline per invocation.
	Timeout time.Duration
}

// NewWriter returns an exiftool-backed GPS writer with the default timeout.
func NewWriter() *Writer {
	return &Writer{Timeout: defaultTimeout}
}

// WriteGps writes GPS tags to the file via exiftool, overwriting the
// original in place (no backup sidecar). A non-zero exit or deadline
// expiry fails the call; stderr becomes the diagnostic.
func (w *Writer) WriteGps(path string, lat, lon float64, elevation *float64) error {
	if !IsAvailable() {
		return fmt.Errorf("exiftool is not installed or not in PATH")
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := buildArgs(path, lat, lon, elevation)
	cmd := exec.CommandContext(ctx, binaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("exiftool timed out after %s for %s", timeout, path)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("exiftool failed: %s", msg)
	}

	logger.Info("exiftool wrote GPS to %s: %.6f, %.6f", path, lat, lon)
	return nil
}

// buildArgs assembles the exiftool argument list. Coordinates are written
// as unsigned magnitudes with hemisphere refs carrying the sign.
func buildArgs(path string, lat, lon float64, elevation *float64) []string {
	latRef := "N"
	if lat < 0 {
		latRef = "S"
	}
	lonRef := "E"
	if lon < 0 {
		lonRef = "W"
	}

	args := []string{
		"-overwrite_original",
		fmt.Sprintf("-GPSLatitude=%.8f", math.Abs(lat)),
		fmt.Sprintf("-GPSLatitudeRef=%s", latRef),
		fmt.Sprintf("-GPSLongitude=%.8f", math.Abs(lon)),
		fmt.Sprintf("-GPSLongitudeRef=%s", lonRef),
	}

	if elevation != nil {
		altRef := "Above Sea Level"
		if *elevation < 0 {
			altRef = "Below Sea Level"
		}
		args = append(args,
			fmt.Sprintf("-GPSAltitude=%.2f", math.Abs(*elevation)),
			fmt.Sprintf("-GPSAltitudeRef=%s", altRef),
		)
	}

	return append(args, path)
}
