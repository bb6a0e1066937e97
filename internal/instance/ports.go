package instance

import (
	"context"
	"fmt"
	"net"
	"strconv"

	dockerpkg "github.com/dyluth/easel/internal/docker"
)

const (
	// Port range for Redis containers. Starts above 6379 so a developer's own
	// Redis keeps its usual port.
	startPort = 16379
	endPort   = 16478
)

// FindNextAvailablePort finds the next available host port for Redis.
// Checks both Docker container labels and actual port bindability on the host.
func FindNextAvailablePort(ctx context.Context, cli ContainerLister) (int, error) {
	containers, err := listContainers(ctx, cli,
		fmt.Sprintf("%s=true", dockerpkg.LabelProject),
		fmt.Sprintf("%s=%s", dockerpkg.LabelComponent, dockerpkg.ComponentRedis),
	)
	if err != nil {
		return 0, err
	}

	usedPorts := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[dockerpkg.LabelRedisPort]); err == nil {
			usedPorts[port] = true
		}
	}

	for port := startPort; port <= endPort; port++ {
		if usedPorts[port] {
			continue
		}
		if isPortBindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

// isPortBindable checks if a port can be bound on localhost.
func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
