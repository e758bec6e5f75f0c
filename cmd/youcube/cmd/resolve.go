package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/youcube/internal/events"
	"github.com/jmylchreest/youcube/internal/media"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve one URL or search term",
	Long: `Resolve a URL or search term into cached artifacts without starting the server.

Every event is printed to stdout as one JSON object per line, in the same shape
the websocket client receives. Give both --width and --height to also produce
video.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().Int("width", 0, "Video width in pixels")
	resolveCmd.Flags().Int("height", 0, "Video height in pixels")
	resolveCmd.MarkFlagsRequiredTogether("width", "height")
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(appConfig, slog.Default())
	if err != nil {
		return err
	}

	req := media.NewRequest(args[0])
	if cmd.Flags().Changed("width") {
		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		if width <= 0 || height <= 0 {
			return fmt.Errorf("--width and --height must be positive")
		}
		req = req.WithDimensions(width, height)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := events.NewWriterSink(cmd.OutOrStdout())
	if _, err := a.resolver.Resolve(ctx, req, sink); err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}
	return sink.Err()
}
