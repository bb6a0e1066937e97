package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/easel/internal/config"
	dockerpkg "github.com/dyluth/easel/internal/docker"
	"github.com/dyluth/easel/internal/instance"
	"github.com/dyluth/easel/internal/printer"
	"github.com/spf13/cobra"
)

var (
	upImage  string
	upForce  bool
	upNoEnv  bool
	upEnvOut string
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a local Redis for a board",
	Long: `Start a local easel instance in the current directory.

Creates and starts:
  • Isolated Docker network
  • Redis container (the shared board store), published on 127.0.0.1

The instance name is auto-generated (default-N) unless specified with --name.
On success a .env file pointing EASEL_REDIS_URL and EASEL_BOARD at the new
instance is written, so every other easel command in this directory uses it.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringVar(&upImage, "image", "", "Redis image (defaults to redis.image from the configuration)")
	upCmd.Flags().BoolVar(&upForce, "force", false, "Start even if another instance was started from this directory")
	upCmd.Flags().BoolVar(&upNoEnv, "no-env", false, "Do not write a .env file")
	upCmd.Flags().StringVar(&upEnvOut, "env-file", ".env", "Where to write the .env file")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	name := instanceFlag
	if name == "" {
		name, err = instance.GenerateDefaultName(ctx, cli)
		if err != nil {
			return fmt.Errorf("failed to generate instance name: %w", err)
		}
	}
	if err := instance.ValidateName(name); err != nil {
		return printer.Error("invalid instance name", err.Error(), nil)
	}

	collision, err := instance.CheckNameCollision(ctx, cli, name)
	if err != nil {
		return err
	}
	if collision {
		return printer.Error(
			fmt.Sprintf("instance '%s' already exists", name),
			"Found existing containers with this instance name.",
			[]string{
				fmt.Sprintf("Stop the existing instance:\n     easel down --name %s", name),
				"Choose a different name:\n     easel up --name other-name",
			},
		)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	workdir, err := instance.CanonicalPath(cwd)
	if err != nil {
		return err
	}

	if !upForce {
		existing, err := instance.FindInstanceByWorkdir(ctx, cli, workdir)
		switch {
		case err == nil:
			return printer.ErrorWithContext(
				"directory in use",
				"Another instance was already started from this directory.",
				map[string]string{"Directory": workdir, "Instance": existing},
				[]string{
					fmt.Sprintf("Stop the other instance:\n     easel down --name %s", existing),
					"Use --force to start a second instance",
				},
			)
		case errors.Is(err, instance.ErrMultipleInstances):
			return printer.Error(
				"directory in use",
				"Several instances were already started from this directory.",
				[]string{"List them:\n     easel list", "Use --force to start another one"},
			)
		case !errors.Is(err, instance.ErrNoInstance):
			return fmt.Errorf("failed to check for existing instances: %w", err)
		}
	}

	image := upImage
	if image == "" {
		image = cfg.Redis.Image
	}

	printer.Step("Starting Redis (%s) for board '%s'...\n", image, cfg.Board)
	port, err := instance.Create(ctx, cli, instance.CreateOptions{
		Name:    name,
		Board:   cfg.Board,
		Image:   image,
		Workdir: workdir,
	})
	if err != nil {
		return printer.ErrorWithContext(
			"failed to start instance",
			err.Error(),
			map[string]string{"Instance": name, "Image": image},
			[]string{fmt.Sprintf("Pull the image first:\n  docker pull %s", image)},
		)
	}

	printer.Success("Instance '%s' is up\n", name)
	printer.Info("  Board: %s\n  Redis: %s\n", cfg.Board, instance.GetRedisURL(port))

	if !upNoEnv {
		if err := config.WriteEnvFile(upEnvOut, cfg.Board, port); err != nil {
			return err
		}
		printer.Info("  Wrote %s\n", upEnvOut)
	}

	printer.Hint("\nNext steps:\n  easel serve         # serve the board over WebSocket\n  easel watch         # stream board activity\n  easel down          # stop the instance\n")
	return nil
}
