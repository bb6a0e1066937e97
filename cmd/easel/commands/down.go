package commands

import (
	"context"
	"fmt"

	dockerpkg "github.com/dyluth/easel/internal/docker"
	"github.com/dyluth/easel/internal/instance"
	"github.com/dyluth/easel/internal/printer"
	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove a local instance",
	Long: `Stop and remove the containers and network of a local easel instance.

The instance is taken from --name, or inferred from the instances started in
the current directory. Board data lives in the Redis container and is lost.`,
	RunE: runDown,
}

func init() {
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	name, err := inferInstance(ctx, cli)
	if err != nil {
		return err
	}

	printer.Step("Removing instance '%s'...\n", name)
	if err := instance.Remove(ctx, cli, name); err != nil {
		return fmt.Errorf("failed to remove instance '%s': %w", name, err)
	}
	printer.Success("Instance '%s' removed\n", name)
	return nil
}
