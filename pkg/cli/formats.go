package cli

import (
	"fmt"
	"strings"

	"github.com/bstardust/gpx-geotagger/internal/exiftool"
	"github.com/bstardust/gpx-geotagger/internal/format"
	"github.com/spf13/cobra"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported photo formats and how each is written",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Written in-process:")
			fmt.Fprintf(out, "  %s\n", strings.Join(format.ExtensionsByTier(format.FullWrite), ", "))

			fmt.Fprintln(out, "Written via external exiftool:")
			fmt.Fprintf(out, "  %s\n", strings.Join(format.ExtensionsByTier(format.NeedsExternalTool), ", "))
			if !exiftool.IsAvailable() {
				fmt.Fprintln(out, "  (exiftool not found in PATH - these formats will fail)")
			}

			fmt.Fprintln(out, "Best effort, may corrupt the file:")
			fmt.Fprintf(out, "  %s\n", strings.Join(format.ExtensionsByTier(format.DangerousRaw), ", "))

			fmt.Fprintln(out, "No metadata support (always skipped):")
			fmt.Fprintf(out, "  %s\n", strings.Join(format.ExtensionsByTier(format.Minimal), ", "))
		},
	}
}
