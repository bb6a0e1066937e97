//go:build integration

package board

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

// TestPatchScript_RealRedis runs the conditional patch script against a real
// server, whose Lua sandbox is stricter than miniredis.
func TestPatchScript_RealRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(setupRedis(t))
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	client, err := NewClient(opts, "integration")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	sub, err := client.SubscribeEntityEvents(ctx)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	e := newRectangle(50, 50, 100, 40)
	if err := client.CreateEntity(ctx, e); err != nil {
		t.Fatalf("CreateEntity failed: %v", err)
	}

	res, err := client.PatchEntity(ctx, e.ID, Patch{Position: &Point{X: 7, Y: 8}})
	if err != nil || !res.Applied || res.Revision != 2 {
		t.Fatalf("PatchEntity = (%+v, %v), want applied at revision 2", res, err)
	}

	var last EntityEvent
	for i := 0; i < 2; i++ {
		select {
		case last = <-sub.Events():
		case <-ctx.Done():
			t.Fatal("timeout waiting for entity events")
		}
	}
	if got := last.Entity.Shape.(*Rectangle).Position; got != (Point{X: 7, Y: 8}) {
		t.Errorf("published position = %+v, want {7 8}", got)
	}

	if _, err := client.DeleteBoard(ctx); err != nil {
		t.Fatalf("DeleteBoard failed: %v", err)
	}
	res, err = client.SetDeleted(ctx, e.ID, true)
	if err != nil || res.Applied {
		t.Errorf("SetDeleted after eviction = (%+v, %v), want not applied", res, err)
	}
}
