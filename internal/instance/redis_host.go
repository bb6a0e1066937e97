package instance

import (
	"fmt"
	"os"
)

// GetRedisHost returns the hostname under which published container ports are
// reachable. Inside a container that is the Docker host, otherwise localhost.
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the Redis URL for a published port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d/0", GetRedisHost(), port)
}
