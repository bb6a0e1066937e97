package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/easel/internal/printer"
	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Permanently delete every entity of a board",
	Long: `Permanently delete every entity of a board, soft-deleted ones included.

Connected clients drop the entities from their stores and from their undo
history. This cannot be undone, so --yes is required.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm the deletion")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, rdb, client, err := openBoard(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if !clearYes {
		return printer.Error(
			fmt.Sprintf("refusing to clear board '%s'", cfg.Board),
			"Clearing a board permanently deletes every entity for every collaborator.",
			[]string{fmt.Sprintf("Confirm with:\n  easel clear --board %s --yes", cfg.Board)},
		)
	}

	n, err := client.DeleteBoard(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear board '%s': %w", cfg.Board, err)
	}
	printer.Success("Removed %d entities from board '%s'\n", n, cfg.Board)
	return nil
}
