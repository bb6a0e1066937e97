package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// WritePresence overwrites the user's presence record and broadcasts it.
// The key expires after ttl, so a client that disappears without calling
// RemovePresence drops out of ListPresence on its own.
func (c *Client) WritePresence(ctx context.Context, p *Presence, ttl time.Duration) error {
	if p.UserID == "" {
		return fmt.Errorf("presence record has no user id")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, PresenceKey(c.boardID, p.UserID), data, ttl)
		pipe.Publish(ctx, PresenceEventsChannel(c.boardID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write presence: %w", err)
	}
	return nil
}

// RemovePresence deletes the user's record and broadcasts a departure notice.
func (c *Client) RemovePresence(ctx context.Context, userID string) error {
	data, err := json.Marshal(&Presence{UserID: userID, LastSeenMs: c.now().UnixMilli(), Left: true})
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, PresenceKey(c.boardID, userID))
		pipe.Publish(ctx, PresenceEventsChannel(c.boardID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

// ListPresence returns every unexpired presence record of the board, ordered
// by user id.
func (c *Client) ListPresence(ctx context.Context) ([]*Presence, error) {
	keys, err := c.scanKeys(ctx, PresencePattern(c.boardID))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []*Presence{}, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	records := make([]*Presence, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Expired between SCAN and MGET
			continue
		}
		var p Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal presence %s: %w", keys[i], err)
		}
		records = append(records, &p)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

// SubscribePresenceEvents subscribes to presence updates on this board.
// Caller must call subscription.Close() when done.
func (c *Client) SubscribePresenceEvents(ctx context.Context) (*Subscription[*Presence], error) {
	return subscribe(ctx, c.rdb, PresenceEventsChannel(c.boardID), func(payload string) (*Presence, error) {
		var p Presence
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal presence event: %w", err)
		}
		return &p, nil
	})
}
