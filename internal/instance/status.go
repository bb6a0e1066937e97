package instance

import (
	"github.com/docker/docker/api/types"
)

// Status represents the health status of an easel instance
type Status string

const (
	// StatusRunning indicates all containers are running
	StatusRunning Status = "Running"

	// StatusDegraded indicates some containers are stopped or missing
	StatusDegraded Status = "Degraded"

	// StatusStopped indicates all containers exist but are stopped
	StatusStopped Status = "Stopped"
)

// DetermineStatus analyzes a set of containers and determines the overall instance status.
func DetermineStatus(containers []types.Container) Status {
	if len(containers) == 0 {
		return StatusStopped
	}

	runningCount := 0
	for _, c := range containers {
		if c.State == "running" {
			runningCount++
		}
	}

	switch {
	case runningCount == len(containers):
		return StatusRunning
	case runningCount > 0:
		return StatusDegraded
	default:
		return StatusStopped
	}
}

// InstanceInfo holds information about an easel instance
type InstanceInfo struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Board   string `json:"board"`
	Port    int    `json:"port"`
	Workdir string `json:"workdir"`
	Created int64  `json:"created"`
}
