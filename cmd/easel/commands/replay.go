package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/script"
	"github.com/spf13/cobra"
)

var (
	replayCols    int
	replayRows    int
	replayJSON    bool
	replayTimeout time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay SCRIPT",
	Short: "Play a gesture script against a board",
	Long: `Replay a YAML gesture script as the configured user.

The script drives a full canvas client: tools, pointer presses, drags, zooms,
pans, property edits, deletes and undo/redo all go through the same paths as
an interactive user, so collaborators see the result live. When the script
finishes the resulting frame is printed.

Example script:

  name: sticky-and-box
  steps:
    - tool: sticky
    - down: {x: 16, y: 16}
    - up: {x: 16, y: 16}
    - tool: rectangle
    - drag: {from: {x: 200, y: 40}, to: {x: 320, y: 120}}
    - patch: {color: "#e91e63"}
    - undo: 1`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayCols, "cols", 80, "Grid width of the printed frame")
	replayCmd.Flags().IntVar(&replayRows, "rows", 24, "Grid height of the printed frame")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print the final display list as JSON")
	replayCmd.Flags().DurationVar(&replayTimeout, "timeout", time.Minute, "Abort the replay after this long")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := script.Load(args[0])
	if err != nil {
		return printer.Error("invalid script", err.Error(), nil)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, replayTimeout)
	defer cancel()

	cfg, rdb, client, err := openBoard(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	c, err := canvas.New(client, cfg.CanvasConfig())
	if err != nil {
		return err
	}

	runCtx, stopCanvas := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(runCtx) }()
	defer func() {
		stopCanvas()
		<-runErr
	}()

	select {
	case <-c.Ready():
	case err := <-runErr:
		runErr <- err
		return fmt.Errorf("canvas failed to start: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	printer.Step("Replaying '%s' (%d steps) on board '%s' as %s\n", s.Name, len(s.Steps), cfg.Board, cfg.User.UserID)
	scriptErr := script.Run(ctx, c, s)
	drainWarnings(c)
	if scriptErr != nil {
		return printer.Error("replay failed", scriptErr.Error(), nil)
	}

	frame := c.Frame()
	out := cmd.OutOrStdout()
	if replayJSON {
		data, err := json.MarshalIndent(frame, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal frame: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return frame.WriteASCII(out, replayCols, replayRows)
}

// drainWarnings prints the write failures reported so far.
func drainWarnings(c *canvas.Canvas) {
	for {
		select {
		case w := <-c.Warnings():
			printer.Warning("%s\n", w)
		default:
			return
		}
	}
}
