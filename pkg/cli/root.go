package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bstardust/gpx-geotagger/internal/logger"
	"github.com/spf13/cobra"
)

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interruption signals
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		logger.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "geotagger",
		Short: "Geotag photos from a GPX track",
		Long:  `A tool that assigns GPS coordinates to photos by correlating their capture times with a recorded GPX track, writing the result back into the photo metadata.`,
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newGeotagCommand())
	rootCmd.AddCommand(newFormatsCommand())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("Error executing command: %v", err)
		os.Exit(1)
	}
}
