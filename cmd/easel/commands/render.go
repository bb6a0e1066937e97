package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/internal/store"
	"github.com/dyluth/easel/internal/viewport"
	"github.com/dyluth/easel/pkg/board"
	"github.com/spf13/cobra"
)

var (
	renderPanX  float64
	renderPanY  float64
	renderScale float64
	renderCols  int
	renderRows  int
	renderJSON  bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw the board in the terminal",
	Long: `Render the visible entities and live cursors of a board.

The board is projected through a viewport (--pan-x, --pan-y, --scale) and
rasterized onto a character grid, one cell per 8x16 screen units. With
--json the display list is printed instead.`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().Float64Var(&renderPanX, "pan-x", 0, "Viewport horizontal pan, in screen units")
	renderCmd.Flags().Float64Var(&renderPanY, "pan-y", 0, "Viewport vertical pan, in screen units")
	renderCmd.Flags().Float64Var(&renderScale, "scale", 1, "Viewport zoom scale")
	renderCmd.Flags().IntVar(&renderCols, "cols", 80, "Grid width in characters")
	renderCmd.Flags().IntVar(&renderRows, "rows", 24, "Grid height in characters")
	renderCmd.Flags().BoolVar(&renderJSON, "json", false, "Print the display list as JSON")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	vp := viewport.Viewport{PanX: renderPanX, PanY: renderPanY, Scale: renderScale}
	if err := vp.Validate(); err != nil {
		return printer.Error("invalid viewport", err.Error(), nil)
	}

	_, rdb, client, err := openBoard(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	entities, err := client.ListEntities(ctx)
	if err != nil {
		return err
	}
	st := store.New()
	st.Replace(entities)

	records, err := client.ListPresence(ctx)
	if err != nil {
		return err
	}
	cursors := make([]board.Presence, 0, len(records))
	for _, p := range records {
		cursors = append(cursors, *p)
	}

	frame := render.Compose(st.VisibleEntities(), cursors, vp)
	out := cmd.OutOrStdout()
	if renderJSON {
		data, err := json.MarshalIndent(frame, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal frame: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if err := frame.WriteASCII(out, renderCols, renderRows); err != nil {
		return printer.Error("invalid grid size", err.Error(), nil)
	}
	return nil
}
