package commands

import (
	"fmt"

	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/watch"
	"github.com/spf13/cobra"
)

var watchOutput string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream board activity",
	Long: `Stream entity and presence activity on a board as it happens.

Reports entity creations, updates, deletions and restores, and collaborators
joining and leaving. Cursor moves are not shown. Runs until interrupted.

Output Formats:
  default - Human-readable lines with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the configured board
  easel watch

  # Export events as JSON
  easel watch --board design-review -o json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var format watch.OutputFormat
	switch watchOutput {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutput),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, rdb, client, err := openBoard(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if format == watch.OutputFormatDefault {
		printer.Info("Watching board '%s' (Ctrl-C to stop)\n", cfg.Board)
	}
	return watch.StreamActivity(ctx, client, format, cmd.OutOrStdout())
}
