package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for easel resources
const (
	LabelProject       = "easel.project"
	LabelInstanceName  = "easel.instance.name"
	LabelInstanceRunID = "easel.instance.run_id"
	LabelWorkdir       = "easel.workdir"
	LabelComponent     = "easel.component"
	LabelRedisPort     = "easel.redis.port"
	LabelBoard         = "easel.board" // Board the instance was started for
)

// ComponentRedis is the component label of the shared store container.
const ComponentRedis = "redis"

// BuildLabels creates the standard label set for all easel resources.
// All parameters are required except component (which is resource-specific).
func BuildLabels(instanceName, runID, workdir, component string) map[string]string {
	labels := map[string]string{
		LabelProject:       "true",
		LabelInstanceName:  instanceName,
		LabelInstanceRunID: runID,
		LabelWorkdir:       workdir,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for an instance run.
// Each invocation of `easel up` gets a unique run ID.
func GenerateRunID() string {
	return uuid.New().String()
}

// NetworkName returns the Docker network name for an instance
func NetworkName(instanceName string) string {
	return fmt.Sprintf("easel-network-%s", instanceName)
}

// RedisContainerName returns the Redis container name for an instance
func RedisContainerName(instanceName string) string {
	return fmt.Sprintf("easel-redis-%s", instanceName)
}
