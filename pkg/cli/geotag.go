package cli

import (
	"context"
	"fmt"

	"github.com/bstardust/gpx-geotagger/internal/config"
	"github.com/bstardust/gpx-geotagger/internal/exif"
	"github.com/bstardust/gpx-geotagger/internal/exiftool"
	"github.com/bstardust/gpx-geotagger/internal/gpstag"
	"github.com/bstardust/gpx-geotagger/internal/logger"
	"github.com/bstardust/gpx-geotagger/internal/photo"
	"github.com/bstardust/gpx-geotagger/internal/processor"
	"github.com/bstardust/gpx-geotagger/internal/progress"
	"github.com/bstardust/gpx-geotagger/internal/report"
	"github.com/spf13/cobra"
)

func newGeotagCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "geotag [flags] <track.gpx> <photo-or-dir>...",
		Short: "Write GPS tags to photos matched against a GPX track",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return runGeotag(cmd.Context(), cfg, args[0], args[1:])
		},
	}

	// Matching options
	cmd.Flags().Float64("max-time-diff", 0, "Max seconds between photo and trackpoint (0 = adaptive)")
	cmd.Flags().Float64("time-offset", 0, "Camera clock offset from UTC in hours (camera ahead = positive)")
	cmd.Flags().Bool("force-interpolate", false, "Match photos regardless of the time threshold")

	// Write options
	cmd.Flags().Bool("overwrite-gps", false, "Overwrite GPS data already present in photos")
	cmd.Flags().Bool("dry-run", false, "Match photos without modifying any files")

	// Scan options
	cmd.Flags().Bool("recursive", false, "Recurse into subdirectories")
	cmd.Flags().Int("concurrency", 4, "Parallel metadata probes during the scan")

	// Output options
	cmd.Flags().String("report", "", "Write a JSON report of per-photo outcomes to this path")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to a config file (default: geotagger.yaml)")

	return cmd
}

func runGeotag(ctx context.Context, cfg *config.Config, gpxPath string, photoPaths []string) error {
	logger.SetLevel(cfg.LogLevel)

	reporter := progress.New()

	var records []*photo.Record

	proc := processor.New(
		exif.NewReader(),
		gpstag.NewWriter(),
		exiftool.NewWriter(),
		processor.Callbacks{
			OnGpxLoaded: func(pointCount int) {
				logger.Debug("GPX ready with %d trackpoints", pointCount)
			},
			OnPhotoDone: func(index int, success bool) {
				rec := records[index]
				switch rec.State {
				case photo.Written:
					reporter.Written(rec.Path)
				case photo.Failed:
					reporter.Failed(rec.Path, rec.Diagnostic)
				default:
					reporter.Skipped(rec.Path, rec.Diagnostic)
					logger.Info("Skipped %s: %s", rec.DisplayName, rec.Diagnostic)
				}
			},
			OnComplete: func(written, total int) {
				reporter.Finish()
			},
		},
	)

	if err := proc.LoadGpx(gpxPath); err != nil {
		return fmt.Errorf("failed to load GPX track: %w", err)
	}

	records, err := proc.ScanPhotos(photoPaths, processor.ScanOptions{
		Recursive:   cfg.Recursive,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no photos found to process")
	}

	// Stop at the next photo boundary when interrupted.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			proc.Cancel()
		case <-done:
		}
	}()

	reporter.Start(len(records))
	proc.Process(ctx, records, processor.Settings{
		MaxTimeDiffSec:       cfg.MaxTimeDiffSec,
		TimeOffsetHours:      cfg.TimeOffsetHours,
		OverwriteExistingGps: cfg.OverwriteExistingGps,
		ForceInterpolate:     cfg.ForceInterpolate,
		DryRun:               cfg.DryRun,
	})

	if cfg.ReportPath != "" {
		if err := report.Build(gpxPath, records).Save(cfg.ReportPath); err != nil {
			return err
		}
	}

	if _, _, failed := reporter.Counts(); failed > 0 {
		return fmt.Errorf("%d photo(s) failed to geotag", failed)
	}
	return nil
}
