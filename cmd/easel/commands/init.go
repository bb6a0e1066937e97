package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/scaffold"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter easel.yml and demo script",
	Long: `Write a starter easel.yml and scripts/demo.yml into the current directory.

The demo script places a sticky note and a few shapes and can be replayed
against any board with 'easel replay scripts/demo.yml'.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	created, err := scaffold.Initialize(cwd, initForce)
	if err != nil {
		return printer.Error(
			"initialization failed",
			err.Error(),
			[]string{"Re-run with --force to overwrite the existing files."},
		)
	}

	for _, path := range created {
		printer.Step("created %s\n", path)
	}
	printer.Success("Initialized easel in %s\n", cwd)
	printer.Hint("Start a local Redis with 'easel up', then try 'easel replay scripts/demo.yml'.\n")
	return nil
}
