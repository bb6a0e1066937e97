package board

import "fmt"

// Redis key pattern helpers
//
// Every key and Pub/Sub channel is namespaced by board id so boards sharing a
// Redis server never see each other's data.
//
// Key pattern: easel:{board_id}:{collection}:{id}
// Channel pattern: easel:{board_id}:{collection}_events

// EntityKey returns the Redis key for an entity hash.
// Pattern: easel:{board_id}:entity:{entity_id}
func EntityKey(boardID, entityID string) string {
	return fmt.Sprintf("easel:%s:entity:%s", boardID, entityID)
}

// EntityIndexKey returns the ZSET of entity ids scored by created_at_ms.
// Pattern: easel:{board_id}:entities
func EntityIndexKey(boardID string) string {
	return fmt.Sprintf("easel:%s:entities", boardID)
}

// PresenceKey returns the Redis key for a user's presence record.
// Pattern: easel:{board_id}:presence:{user_id}
func PresenceKey(boardID, userID string) string {
	return fmt.Sprintf("easel:%s:presence:%s", boardID, userID)
}

// PresencePattern matches every presence key of a board, for SCAN.
func PresencePattern(boardID string) string {
	return fmt.Sprintf("easel:%s:presence:*", boardID)
}

// EntityEventsChannel returns the Pub/Sub channel for entity writes.
// Pattern: easel:{board_id}:entity_events
func EntityEventsChannel(boardID string) string {
	return fmt.Sprintf("easel:%s:entity_events", boardID)
}

// PresenceEventsChannel returns the Pub/Sub channel for presence updates.
// Pattern: easel:{board_id}:presence_events
func PresenceEventsChannel(boardID string) string {
	return fmt.Sprintf("easel:%s:presence_events", boardID)
}
