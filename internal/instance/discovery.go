package instance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/docker/docker/api/types"
	dockerpkg "github.com/dyluth/easel/internal/docker"
)

var (
	// ErrNoInstance is returned when no instance was started from a directory.
	ErrNoInstance = errors.New("no instances found")
	// ErrMultipleInstances is returned when inference is ambiguous.
	ErrMultipleInstances = errors.New("multiple instances found")
)

// List returns every easel instance known to Docker, sorted by name.
func List(ctx context.Context, cli ContainerLister) ([]InstanceInfo, error) {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=true", dockerpkg.LabelProject))
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]types.Container)
	for _, c := range containers {
		name := c.Labels[dockerpkg.LabelInstanceName]
		grouped[name] = append(grouped[name], c)
	}

	infos := make([]InstanceInfo, 0, len(grouped))
	for name, group := range grouped {
		info := InstanceInfo{
			Name:    name,
			Status:  DetermineStatus(group),
			Workdir: group[0].Labels[dockerpkg.LabelWorkdir],
			Created: group[0].Created,
		}
		for _, c := range group {
			if c.Labels[dockerpkg.LabelComponent] != dockerpkg.ComponentRedis {
				continue
			}
			info.Board = c.Labels[dockerpkg.LabelBoard]
			info.Port, _ = strconv.Atoi(c.Labels[dockerpkg.LabelRedisPort])
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// FindInstanceByWorkdir finds the instance started from dir. Returns
// ErrNoInstance or ErrMultipleInstances when there is not exactly one.
func FindInstanceByWorkdir(ctx context.Context, cli ContainerLister, dir string) (string, error) {
	canonical, err := CanonicalPath(dir)
	if err != nil {
		return "", err
	}

	infos, err := List(ctx, cli)
	if err != nil {
		return "", err
	}

	var matching []string
	for _, info := range infos {
		if info.Workdir == canonical {
			matching = append(matching, info.Name)
		}
	}

	switch len(matching) {
	case 0:
		return "", ErrNoInstance
	case 1:
		return matching[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrMultipleInstances, matching)
	}
}

// InferInstance infers the instance from the current working directory.
func InferInstance(ctx context.Context, cli ContainerLister) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return FindInstanceByWorkdir(ctx, cli, wd)
}

// GetInstanceRedisPort retrieves the Redis port for the given instance from Docker labels.
func GetInstanceRedisPort(ctx context.Context, cli ContainerLister, instanceName string) (int, error) {
	containers, err := listContainers(ctx, cli,
		fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName),
		fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis),
	)
	if err != nil {
		return 0, err
	}

	if len(containers) == 0 {
		return 0, fmt.Errorf("Redis container not found for instance '%s'", instanceName)
	}

	portStr, ok := containers[0].Labels[dockerpkg.LabelRedisPort]
	if !ok {
		return 0, fmt.Errorf("Redis port label missing for instance '%s'", instanceName)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid Redis port '%s': %w", portStr, err)
	}

	return port, nil
}

// VerifyInstanceRunning checks that the instance's Redis container is running.
func VerifyInstanceRunning(ctx context.Context, cli ContainerLister, instanceName string) error {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName))
	if err != nil {
		return err
	}

	if len(containers) == 0 {
		return fmt.Errorf("instance '%s' not found", instanceName)
	}

	for _, c := range containers {
		if c.Labels[dockerpkg.LabelComponent] != dockerpkg.ComponentRedis {
			continue
		}
		if c.State != "running" {
			return fmt.Errorf("instance '%s' is not running (component '%s' is %s)", instanceName, dockerpkg.ComponentRedis, c.State)
		}
		return nil
	}

	return fmt.Errorf("instance '%s' is missing essential component '%s'", instanceName, dockerpkg.ComponentRedis)
}

// CanonicalPath resolves symlinks and makes dir absolute.
func CanonicalPath(dir string) (string, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}
