package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/easel/pkg/board"
)

// Run starts the event loop and blocks until ctx is cancelled. It can be
// called once per Canvas.
func (c *Canvas) Run(ctx context.Context) error {
	err := errors.New("canvas already started")
	c.running.Do(func() { err = c.run(ctx) })
	return err
}

func (c *Canvas) run(ctx context.Context) error {
	defer close(c.done)
	boardID := c.backend.BoardID()
	log.Printf("[Canvas] Starting for board '%s' as %s", boardID, c.cfg.Identity.UserID)

	// Subscribe before loading the snapshot so no write falls in between.
	entities, err := c.backend.SubscribeEntityEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to entity events: %w", err)
	}
	defer entities.Close()

	peers, err := c.backend.SubscribePresenceEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence events: %w", err)
	}
	defer peers.Close()

	snapshot, err := c.backend.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}
	c.store.Replace(snapshot)

	records, err := c.backend.ListPresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to load presence: %w", err)
	}
	c.presence.Load(records)

	c.logEvent("snapshot_loaded", map[string]interface{}{
		"entities": len(snapshot),
		"peers":    len(records),
	})
	close(c.ready)
	c.notify()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	entityErrs, peerErrs := entities.Errors(), peers.Errors()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Canvas] Shutting down...")
			c.leave()
			return nil

		case cmd := <-c.cmds:
			c.execute(ctx, cmd)

		case ev, ok := <-entities.Events():
			if !ok {
				log.Printf("[Canvas] Entity subscription closed")
				c.leave()
				return nil
			}
			c.applyEntityEvent(ev)

		case p, ok := <-peers.Events():
			if !ok {
				log.Printf("[Canvas] Presence subscription closed")
				c.leave()
				return nil
			}
			c.presence.Apply(p)
			c.notify()

		case err, ok := <-entityErrs:
			if !ok {
				entityErrs = nil
				continue
			}
			log.Printf("[Canvas] Entity subscription error: %v", err)

		case err, ok := <-peerErrs:
			if !ok {
				peerErrs = nil
				continue
			}
			log.Printf("[Canvas] Presence subscription error: %v", err)

		case now := <-ticker.C:
			c.tick(ctx, now)
		}
	}
}

func (c *Canvas) execute(ctx context.Context, cmd command) {
	version := c.store.Version()
	if err := cmd.run(ctx, c.now()); err != nil {
		// Gateway failures already went out as warnings.
		log.Printf("[Canvas] %s failed: %v", cmd.name, err)
	}

	c.mu.Lock()
	c.tool = c.session.Tool()
	c.selection = c.session.Selection()
	c.mu.Unlock()

	if cmd.name != "sync" || c.store.Version() != version {
		c.notify()
	}
}

func (c *Canvas) applyEntityEvent(ev board.EntityEvent) {
	if ev.Evicted {
		c.store.Evict(ev.ID)
		c.logEvent("entity_evicted", map[string]interface{}{"entity_id": ev.ID})
	} else {
		c.store.Apply(ev.Entity)
	}
	c.notify()
}

func (c *Canvas) tick(ctx context.Context, now time.Time) {
	version := c.store.Version()
	if err := c.session.Tick(ctx, now); err != nil {
		log.Printf("[Canvas] Live patch failed: %v", err)
	}
	if err := c.presence.Tick(ctx, now); err != nil {
		log.Printf("[Canvas] Presence write failed: %v", err)
	}
	if c.store.Version() != version {
		c.notify()
	}
}

// leave removes the local presence record with a fresh context, since the
// loop's own context is usually already cancelled.
func (c *Canvas) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.presence.Leave(ctx); err != nil {
		log.Printf("[Canvas] Failed to remove presence: %v", err)
	}
}

// logEvent logs a structured event in JSON format.
func (c *Canvas) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "canvas"
	data["event_type"] = eventType
	data["board"] = c.backend.BoardID()
	data["user_id"] = c.cfg.Identity.UserID

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Canvas] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
