package instance

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	dockerpkg "github.com/dyluth/easel/internal/docker"
)

// CreateOptions describes a new instance.
type CreateOptions struct {
	Name    string
	Board   string
	Image   string
	Workdir string
}

// Create starts an isolated network and a Redis container for an instance and
// returns the published host port. On failure the partially created
// resources are removed.
func Create(ctx context.Context, cli *client.Client, opts CreateOptions) (int, error) {
	port, err := create(ctx, cli, opts)
	if err != nil {
		log.Printf("[Instance] Creation of '%s' failed, rolling back: %v", opts.Name, err)
		if rollbackErr := Remove(ctx, cli, opts.Name); rollbackErr != nil {
			log.Printf("[Instance] Rollback encountered errors: %v", rollbackErr)
		}
		return 0, err
	}
	return port, nil
}

func create(ctx context.Context, cli *client.Client, opts CreateOptions) (int, error) {
	runID := dockerpkg.GenerateRunID()

	redisPort, err := FindNextAvailablePort(ctx, cli)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate Redis port: %w", err)
	}

	networkName := dockerpkg.NetworkName(opts.Name)
	_, err = cli.NetworkCreate(ctx, networkName, types.NetworkCreate{
		Driver: "bridge",
		Labels: dockerpkg.BuildLabels(opts.Name, runID, opts.Workdir, ""),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create network '%s': %w", networkName, err)
	}

	labels := dockerpkg.BuildLabels(opts.Name, runID, opts.Workdir, dockerpkg.ComponentRedis)
	labels[dockerpkg.LabelRedisPort] = strconv.Itoa(redisPort)
	labels[dockerpkg.LabelBoard] = opts.Board

	redisName := dockerpkg.RedisContainerName(opts.Name)
	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:  opts.Image,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: strconv.Itoa(redisPort)},
			},
		},
	}, nil, nil, redisName)
	if err != nil {
		return 0, fmt.Errorf("failed to create Redis container (is %s pulled?): %w", opts.Image, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start Redis container: %w", err)
	}

	return redisPort, nil
}

// Remove stops and removes every container and network labelled with the
// instance name.
func Remove(ctx context.Context, cli *client.Client, instanceName string) error {
	nameFilter := filters.NewArgs(filters.Arg("label", fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName)))

	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true, Filters: nameFilter})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	timeout := 10
	for _, c := range containers {
		if err := cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			// Might already be stopped
			log.Printf("[Instance] Failed to stop %s: %v", containerName(c), err)
		}
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return fmt.Errorf("failed to remove %s: %w", containerName(c), err)
		}
	}

	networks, err := cli.NetworkList(ctx, types.NetworkListOptions{Filters: nameFilter})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	for _, n := range networks {
		if err := cli.NetworkRemove(ctx, n.ID); err != nil {
			return fmt.Errorf("failed to remove network %s: %w", n.Name, err)
		}
	}

	return nil
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return c.Names[0]
	}
	return c.ID
}
