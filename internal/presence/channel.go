// Package presence broadcasts the local pointer and merges everyone else's.
//
// Presence is best-effort liveness. Writes are coalesced to a bounded rate
// (latest position wins, intermediate ones are dropped), records are never
// versioned or undone, and a peer that stops updating simply ages out of the
// live set once its record is older than the staleness timeout.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dyluth/easel/internal/throttle"
	"github.com/dyluth/easel/pkg/board"
)

// Publisher writes the local record. *board.Client implements it.
type Publisher interface {
	WritePresence(ctx context.Context, p *board.Presence, ttl time.Duration) error
	RemovePresence(ctx context.Context, userID string) error
}

// Options configures a Channel.
type Options struct {
	// Rate is the maximum number of writes per second.
	Rate float64
	// Timeout is how long a record stays live without an update. It is also
	// the TTL of the stored record.
	Timeout time.Duration
}

// DefaultOptions returns 5 writes/second and a 30 second timeout.
func DefaultOptions() Options {
	return Options{Rate: 5, Timeout: 30 * time.Second}
}

// Channel is one client's presence state.
type Channel struct {
	pub  Publisher
	self board.Identity
	opts Options

	out      *throttle.Coalescer[board.Point]
	lastPos  board.Point
	lastSent time.Time
	started  bool

	mu    sync.RWMutex
	peers map[string]board.Presence
}

// NewChannel returns a channel publishing as self.
func NewChannel(pub Publisher, self board.Identity, opts Options) *Channel {
	return &Channel{
		pub:   pub,
		self:  self,
		opts:  opts,
		out:   throttle.PerSecond[board.Point](opts.Rate),
		peers: make(map[string]board.Presence),
	}
}

// Publish offers the local pointer position (canvas space). It is written
// immediately if the rate allows, otherwise it replaces any pending position
// and goes out on a later Tick.
func (c *Channel) Publish(ctx context.Context, now time.Time, x, y float64) error {
	p, ok := c.out.Offer(now, board.Point{X: x, Y: y})
	if !ok {
		return nil
	}
	return c.write(ctx, now, p)
}

// Tick flushes a pending position when the rate allows, and re-sends the last
// position when nothing has gone out for a third of the timeout so an idle
// pointer does not look like a departed one. Stale peers are pruned.
func (c *Channel) Tick(ctx context.Context, now time.Time) error {
	c.prune(now)

	if p, ok := c.out.Flush(now); ok {
		return c.write(ctx, now, p)
	}
	if c.started && !c.out.Pending() && now.Sub(c.lastSent) >= c.opts.Timeout/3 {
		return c.write(ctx, now, c.lastPos)
	}
	return nil
}

func (c *Channel) write(ctx context.Context, now time.Time, p board.Point) error {
	c.lastPos, c.lastSent, c.started = p, now, true
	return c.pub.WritePresence(ctx, &board.Presence{
		UserID:      c.self.UserID,
		DisplayName: c.self.DisplayName,
		Color:       c.self.Color,
		X:           p.X,
		Y:           p.Y,
		LastSeenMs:  now.UnixMilli(),
	}, c.opts.Timeout)
}

// Apply merges a peer's record. The newest record per user wins and a
// departure removes the user. The local user's own records are ignored.
func (c *Channel) Apply(p *board.Presence) {
	if p == nil || p.UserID == "" || p.UserID == c.self.UserID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.peers[p.UserID]
	if ok && cur.LastSeenMs > p.LastSeenMs {
		return
	}
	if p.Left {
		delete(c.peers, p.UserID)
		return
	}
	c.peers[p.UserID] = *p
}

// Load merges a snapshot of stored records.
func (c *Channel) Load(records []*board.Presence) {
	for _, p := range records {
		c.Apply(p)
	}
}

// Live returns the latest record of every peer seen within the timeout,
// ordered by display name then user id.
func (c *Channel) Live(now time.Time) []board.Presence {
	cutoff := now.Add(-c.opts.Timeout).UnixMilli()

	c.mu.RLock()
	live := make([]board.Presence, 0, len(c.peers))
	for _, p := range c.peers {
		if p.LastSeenMs >= cutoff {
			live = append(live, p)
		}
	}
	c.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool {
		if live[i].DisplayName != live[j].DisplayName {
			return live[i].DisplayName < live[j].DisplayName
		}
		return live[i].UserID < live[j].UserID
	})
	return live
}

// Leave removes the local record so peers drop the cursor without waiting for
// the timeout.
func (c *Channel) Leave(ctx context.Context) error {
	c.out.Reset()
	c.started = false
	return c.pub.RemovePresence(ctx, c.self.UserID)
}

func (c *Channel) prune(now time.Time) {
	cutoff := now.Add(-c.opts.Timeout).UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.peers {
		if p.LastSeenMs < cutoff {
			delete(c.peers, id)
		}
	}
}
