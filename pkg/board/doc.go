// Package board provides the Go data model and Redis schema for a shared
// drawing board.
//
// # Overview
//
// A board is two collections with different retention rules. Entities
// (strokes, rectangles, ellipses, text and sticky notes) are durable: they are
// soft-deleted, never removed, so any client can undo a deletion later.
// Presence records are ephemeral: one per connected user, overwritten on every
// pointer update and expired by a TTL.
//
// # Core Concepts
//
// Entity shapes form a closed sum type. Shape is an interface with unexported
// methods, implemented by *Stroke, *Rectangle, *Ellipse, *Text and *Sticky
// only, so a type switch over those five is exhaustive.
//
// Patch is a partial update. Patch.Capture computes the inverse of a patch
// against an entity's current state, which is what undo replays.
//
// Conflicts are resolved by last-write-wins per field: the order in which
// Redis commits two patches is the order in which every subscriber sees them.
//
// # Usage Example
//
//	client, err := board.NewClient(&redis.Options{Addr: "localhost:6379"}, "sketch-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	e := &board.Entity{
//		ID:      uuid.New().String(),
//		OwnerID: "ada",
//		Shape: &board.Rectangle{
//			Position: board.Point{X: 50, Y: 50},
//			Size:     board.Size{Width: 100, Height: 40},
//			Color:    "#1e88e5",
//		},
//	}
//	if err := client.CreateEntity(ctx, e); err != nil {
//		log.Fatal(err)
//	}
//
//	width := 2.0
//	_, err = client.PatchEntity(ctx, e.ID, board.Patch{StrokeWidth: &width})
//
// # Redis Schema
//
// Entities:
//   - easel:{board}:entity:{id} - hash, one field per scalar, points as JSON
//   - easel:{board}:entities - ZSET of entity ids scored by created_at_ms
//   - easel:{board}:entity_events - Pub/Sub, full entity hash as JSON per write
//
// Presence:
//   - easel:{board}:presence:{user} - JSON string with TTL
//   - easel:{board}:presence_events - Pub/Sub, presence JSON per write
//
// # Design Principles
//
//   - Patches and soft-deletes only apply if the entity still exists, so writes
//     racing a board deletion are harmless no-ops.
//   - Every write publishes the committed state, never the requested change.
//   - Creation time comes from the Redis server clock to give all clients one
//     ordering for simultaneously created entities.
package board
