package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides board-scoped Redis operations.
// All keys and channels are automatically namespaced with the board id.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb     *redis.Client
	boardID string
	owned   bool
	now     func() time.Time
}

// NewClient creates a new board client with its own connection pool.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - boardID: board identifier, see ValidateBoardID
func NewClient(redisOpts *redis.Options, boardID string) (*Client, error) {
	if err := ValidateBoardID(boardID); err != nil {
		return nil, err
	}

	return &Client{
		rdb:     redis.NewClient(redisOpts),
		boardID: boardID,
		owned:   true,
		now:     time.Now,
	}, nil
}

// NewClientFromRedis creates a board client on top of an existing Redis client.
// Close does not close the shared connection pool.
func NewClientFromRedis(rdb *redis.Client, boardID string) (*Client, error) {
	if err := ValidateBoardID(boardID); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb, boardID: boardID, now: time.Now}, nil
}

// BoardID returns the board this client is scoped to.
func (c *Client) BoardID() string {
	return c.boardID
}

// Close closes the Redis connection if this client owns it. Implements io.Closer.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// publishEntity is the tail shared by the write scripts: it publishes the
// full hash so the event matches what was committed.
const publishEntity = `
local flat = redis.call('HGETALL', KEYS[1])
local doc = {}
for i = 1, #flat, 2 do
  doc[flat[i]] = flat[i + 1]
end
redis.call('PUBLISH', ARGV[1], cjson.encode(doc))
`

// patchScript overwrites hash fields only if the entity still exists, bumps
// the revision and publishes the result.
//
// KEYS[1] = entity key, ARGV[1] = events channel, ARGV[2] = updated_at_ms,
// ARGV[3..] = field/value pairs. Returns {exists, changed, revision}.
var patchScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {0, 0, 0}
end
redis.call('HSET', KEYS[1], 'updated_at_ms', ARGV[2], unpack(ARGV, 3))
local rev = redis.call('HINCRBY', KEYS[1], 'revision', 1)
` + publishEntity + `
return {1, 1, rev}
`)

// deletedScript sets the soft-delete flag. Setting it to the value it already
// has writes and publishes nothing, so the caller learns from Redis, not from
// its own mirror, whether anything changed.
//
// KEYS[1] = entity key, ARGV[1] = events channel, ARGV[2] = updated_at_ms,
// ARGV[3] = "true" or "false". Returns {exists, changed, revision}.
var deletedScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {0, 0, 0}
end
if redis.call('HGET', KEYS[1], 'deleted') == ARGV[3] then
  return {1, 0, tonumber(redis.call('HGET', KEYS[1], 'revision')) or 0}
end
redis.call('HSET', KEYS[1], 'deleted', ARGV[3], 'updated_at_ms', ARGV[2])
local rev = redis.call('HINCRBY', KEYS[1], 'revision', 1)
` + publishEntity + `
return {1, 1, rev}
`)

// WriteResult is the outcome of a conditional write to an existing entity.
type WriteResult struct {
	Applied  bool  // The entity existed
	Changed  bool  // A field was written and an event published
	Revision int64 // Revision after the write
}

// CreateEntity writes a new entity and publishes it on the entity events channel.
// CreatedAtMs is assigned from the Redis server clock so every client orders
// simultaneously created entities the same way. The hash write, the index
// update and the publish run in one MULTI/EXEC transaction.
func (c *Client) CreateEntity(ctx context.Context, e *Entity) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}

	serverTime, err := c.rdb.Time(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to read server time: %w", err)
	}
	e.CreatedAtMs = serverTime.UnixMilli()
	e.UpdatedAtMs = c.now().UnixMilli()
	e.Revision = 1

	hash, err := EntityToHash(e)
	if err != nil {
		return fmt.Errorf("failed to serialize entity: %w", err)
	}

	payload, err := json.Marshal(hash)
	if err != nil {
		return fmt.Errorf("failed to marshal entity for event: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, EntityKey(c.boardID, e.ID), hash)
		pipe.ZAdd(ctx, EntityIndexKey(c.boardID), redis.Z{Score: float64(e.CreatedAtMs), Member: e.ID})
		pipe.Publish(ctx, EntityEventsChannel(c.boardID), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write entity to Redis: %w", err)
	}

	return nil
}

// PatchEntity overwrites the fields named by the patch.
// Returns a result with Applied false if the entity no longer exists: writing
// to an evicted entity is a successful no-op, not an error.
func (c *Client) PatchEntity(ctx context.Context, entityID string, p Patch) (WriteResult, error) {
	if p.IsEmpty() {
		return WriteResult{}, fmt.Errorf("patch for %s touches no fields", entityID)
	}

	kind, err := c.rdb.HGet(ctx, EntityKey(c.boardID, entityID), "kind").Result()
	if err != nil {
		if IsNotFound(err) {
			return WriteResult{}, nil
		}
		return WriteResult{}, fmt.Errorf("failed to read entity kind: %w", err)
	}
	if err := p.Validate(Kind(kind)); err != nil {
		return WriteResult{}, fmt.Errorf("invalid patch for %s: %w", entityID, err)
	}

	fields, err := PatchToHash(p)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to serialize patch: %w", err)
	}

	args := make([]interface{}, 0, 2*len(fields))
	for field, value := range fields {
		args = append(args, field, value)
	}
	return c.runWrite(ctx, patchScript, entityID, args...)
}

// SetDeleted sets the soft-delete flag. Setting the flag to its current value
// is a no-op reported with Changed false.
// Returns a result with Applied false if the entity no longer exists.
func (c *Client) SetDeleted(ctx context.Context, entityID string, deleted bool) (WriteResult, error) {
	return c.runWrite(ctx, deletedScript, entityID, strconv.FormatBool(deleted))
}

func (c *Client) runWrite(ctx context.Context, script *redis.Script, entityID string, args ...interface{}) (WriteResult, error) {
	argv := make([]interface{}, 0, 2+len(args))
	argv = append(argv, EntityEventsChannel(c.boardID), c.now().UnixMilli())
	argv = append(argv, args...)

	res, err := script.Run(ctx, c.rdb, []string{EntityKey(c.boardID, entityID)}, argv...).Int64Slice()
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to write entity %s: %w", entityID, err)
	}
	if len(res) != 3 {
		return WriteResult{}, fmt.Errorf("unexpected write script reply for %s: %v", entityID, res)
	}
	return WriteResult{Applied: res[0] == 1, Changed: res[1] == 1, Revision: res[2]}, nil
}

// GetEntity retrieves an entity by id, including soft-deleted ones.
// Returns (nil, redis.Nil) if the entity doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	hashData, err := c.rdb.HGetAll(ctx, EntityKey(c.boardID, entityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entity from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	entity, err := HashToEntity(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize entity: %w", err)
	}

	return entity, nil
}

// EntityExists checks if an entity exists without fetching it.
func (c *Client) EntityExists(ctx context.Context, entityID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, EntityKey(c.boardID, entityID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check entity existence: %w", err)
	}
	return exists > 0, nil
}

// ListEntities returns every entity of the board, soft-deleted ones included,
// in creation order.
func (c *Client) ListEntities(ctx context.Context) ([]*Entity, error) {
	ids, err := c.rdb.ZRange(ctx, EntityIndexKey(c.boardID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read entity index: %w", err)
	}
	if len(ids) == 0 {
		return []*Entity{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, EntityKey(c.boardID, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read entities: %w", err)
	}

	entities := make([]*Entity, 0, len(ids))
	for i, cmd := range cmds {
		hashData := cmd.Val()
		if len(hashData) == 0 {
			// Index entry without a hash: evicted between ZRANGE and HGETALL
			continue
		}
		entity, err := HashToEntity(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize entity %s: %w", ids[i], err)
		}
		entities = append(entities, entity)
	}

	return entities, nil
}

// DeleteBoard hard-evicts every entity and presence record of the board and
// publishes an eviction event per entity. This is the only operation that
// physically removes entities. Returns the number of entities evicted.
func (c *Client) DeleteBoard(ctx context.Context) (int, error) {
	ids, err := c.rdb.ZRange(ctx, EntityIndexKey(c.boardID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read entity index: %w", err)
	}

	presenceKeys, err := c.scanKeys(ctx, PresencePattern(c.boardID))
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(ids)+len(presenceKeys)+1)
	for _, id := range ids {
		keys = append(keys, EntityKey(c.boardID, id))
	}
	keys = append(keys, presenceKeys...)
	keys = append(keys, EntityIndexKey(c.boardID))

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, id := range ids {
			payload, _ := json.Marshal(map[string]string{"id": id, "evicted": "true"})
			pipe.Publish(ctx, EntityEventsChannel(c.boardID), payload)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete board %s: %w", c.boardID, err)
	}

	return len(ids), nil
}

// EntityEvent is one message from the entity events channel: either the full
// committed state of an entity, or the notice that it was hard-evicted.
type EntityEvent struct {
	ID      string
	Entity  *Entity // nil when Evicted
	Evicted bool
}

// SubscribeEntityEvents subscribes to entity writes on this board.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Redis Pub/Sub is at-most-once: a subscriber that falls behind or reconnects
// should reload the full state with ListEntities.
func (c *Client) SubscribeEntityEvents(ctx context.Context) (*Subscription[EntityEvent], error) {
	return subscribe(ctx, c.rdb, EntityEventsChannel(c.boardID), decodeEntityEvent)
}

func decodeEntityEvent(payload string) (EntityEvent, error) {
	var hash map[string]string
	if err := json.Unmarshal([]byte(payload), &hash); err != nil {
		return EntityEvent{}, fmt.Errorf("failed to unmarshal entity event: %w", err)
	}
	if hash["evicted"] == "true" {
		return EntityEvent{ID: hash["id"], Evicted: true}, nil
	}
	entity, err := HashToEntity(hash)
	if err != nil {
		return EntityEvent{}, fmt.Errorf("failed to decode entity event: %w", err)
	}
	return EntityEvent{ID: entity.ID, Entity: entity}, nil
}

func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	return keys, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
