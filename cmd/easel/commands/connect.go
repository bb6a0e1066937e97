package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/easel/internal/config"
	dockerpkg "github.com/dyluth/easel/internal/docker"
	"github.com/dyluth/easel/internal/instance"
	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/pkg/board"
	"github.com/redis/go-redis/v9"
)

// loadConfig reads the configuration and applies the global flags. A missing
// file is only an error when --config was given explicitly.
func loadConfig() (*config.EaselConfig, error) {
	cfg, err := config.Load(configPath, configPath == config.DefaultPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Check %s, or remove it to use the defaults", configPath)},
		)
	}

	if boardFlag != "" {
		if err := board.ValidateBoardID(boardFlag); err != nil {
			return nil, printer.Error("invalid board id", err.Error(), nil)
		}
		cfg.Board = boardFlag
	}
	return cfg, nil
}

// resolveRedisURL picks the Redis server: --redis-url, then the instance
// named by --name, then the configuration.
func resolveRedisURL(ctx context.Context, cfg *config.EaselConfig) (string, error) {
	if redisURLFlag != "" {
		return redisURLFlag, nil
	}
	if instanceFlag == "" {
		return cfg.Redis.URL, nil
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return "", err
	}
	defer cli.Close()

	if err := instance.VerifyInstanceRunning(ctx, cli, instanceFlag); err != nil {
		return "", printer.Error(
			fmt.Sprintf("instance '%s' is not running", instanceFlag),
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Start the instance:\n  easel up --name %s", instanceFlag)},
		)
	}

	port, err := instance.GetInstanceRedisPort(ctx, cli, instanceFlag)
	if err != nil {
		return "", printer.ErrorWithContext(
			"Redis port not found",
			fmt.Sprintf("Instance '%s' exists but Redis port label is missing.", instanceFlag),
			nil,
			[]string{fmt.Sprintf("Restart the instance:\n  easel down --name %s\n  easel up --name %s", instanceFlag, instanceFlag)},
		)
	}
	return instance.GetRedisURL(port), nil
}

// connect loads the configuration and opens a verified Redis connection.
// The caller closes the returned client.
func connect(ctx context.Context) (*config.EaselConfig, *redis.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	url, err := resolveRedisURL(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cfg.Redis.URL = url

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, printer.Error("invalid Redis URL", err.Error(), nil)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", url),
			map[string]string{"Board": cfg.Board},
			[]string{
				"Start a local Redis for this board:\n  easel up",
				fmt.Sprintf("Or point %s at a running server", config.EnvRedisURL),
			},
		)
	}
	return cfg, rdb, nil
}

// openBoard connects and scopes a client to the configured board.
func openBoard(ctx context.Context) (*config.EaselConfig, *redis.Client, *board.Client, error) {
	cfg, rdb, err := connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := board.NewClientFromRedis(rdb, cfg.Board)
	if err != nil {
		rdb.Close()
		return nil, nil, nil, err
	}
	return cfg, rdb, client, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// inferInstance resolves the instance from --name or the working directory.
func inferInstance(ctx context.Context, cli instance.ContainerLister) (string, error) {
	if instanceFlag != "" {
		return instanceFlag, nil
	}

	name, err := instance.InferInstance(ctx, cli)
	switch {
	case errors.Is(err, instance.ErrNoInstance):
		return "", printer.Error(
			"no easel instances found",
			"No instance was started from this directory.",
			[]string{"Start an instance first:\n  easel up"},
		)
	case errors.Is(err, instance.ErrMultipleInstances):
		return "", printer.Error(
			"multiple instances found",
			"Found multiple instances started from this directory.",
			[]string{
				"Specify which instance to use:\n  easel down --name <instance-name>",
				"List instances:\n  easel list",
			},
		)
	case err != nil:
		return "", fmt.Errorf("failed to infer instance: %w", err)
	}
	return name, nil
}
