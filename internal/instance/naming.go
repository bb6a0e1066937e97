package instance

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerpkg "github.com/dyluth/easel/internal/docker"
)

const (
	// DefaultNamePrefix is the prefix for auto-generated instance names
	DefaultNamePrefix = "default-"

	// MaxNameLength is the maximum length for an instance name (DNS-compatible)
	MaxNameLength = 63
)

var (
	// NamePattern is the regex pattern for valid instance names.
	// Must be DNS-compatible: lowercase alphanumeric, hyphens allowed (but not at start/end)
	NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)
)

// ContainerLister is the slice of the Docker API used for discovery.
// *client.Client implements it.
type ContainerLister interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
}

// ValidateName checks if an instance name is valid according to DNS naming rules.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// GenerateDefaultName returns the next free default-N instance name.
func GenerateDefaultName(ctx context.Context, cli ContainerLister) (string, error) {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=true", dockerpkg.LabelProject))
	if err != nil {
		return "", err
	}

	highestN := 0
	for _, c := range containers {
		instanceName := c.Labels[dockerpkg.LabelInstanceName]
		if !strings.HasPrefix(instanceName, DefaultNamePrefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(instanceName, DefaultNamePrefix)); err == nil && n > highestN {
			highestN = n
		}
	}

	return fmt.Sprintf("%s%d", DefaultNamePrefix, highestN+1), nil
}

// CheckNameCollision reports whether an instance with the given name already exists.
func CheckNameCollision(ctx context.Context, cli ContainerLister, instanceName string) (bool, error) {
	containers, err := listContainers(ctx, cli, fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName))
	if err != nil {
		return false, fmt.Errorf("failed to check for name collision: %w", err)
	}
	return len(containers) > 0, nil
}

func listContainers(ctx context.Context, cli ContainerLister, labels ...string) ([]types.Container, error) {
	filter := filters.NewArgs()
	for _, l := range labels {
		filter.Add("label", l)
	}

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}
