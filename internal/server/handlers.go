package server

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"

	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/internal/store"
	"github.com/dyluth/easel/internal/viewport"
	"github.com/dyluth/easel/pkg/board"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// ComponentCheck is the health of one dependency.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

func (s *Server) health(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["redis"] = ComponentCheck{Status: "unhealthy", Error: err.Error()}
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	resp.Checks["redis"] = ComponentCheck{Status: "healthy", Latency: time.Since(start).String()}
	return c.JSON(resp)
}

// EntitiesResponse is the body of GET /api/boards/:board/entities.
type EntitiesResponse struct {
	Board    string          `json:"board"`
	Entities []*board.Entity `json:"entities"`
}

func (s *Server) listEntities(c *fiber.Ctx) error {
	boardID := c.Locals("board").(string)
	entities, err := s.load(c.UserContext(), boardID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	if c.QueryBool("all") {
		store.SortPaintOrder(entities)
	} else {
		entities = visible(entities)
	}
	if entities == nil {
		entities = []*board.Entity{}
	}
	return c.JSON(EntitiesResponse{Board: boardID, Entities: entities})
}

// renderFrame returns the board as ASCII art at the identity viewport.
func (s *Server) renderFrame(c *fiber.Ctx) error {
	boardID := c.Locals("board").(string)
	cols, rows := c.QueryInt("cols", 80), c.QueryInt("rows", 24)

	client, err := board.NewClientFromRedis(s.rdb, boardID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	entities, err := client.ListEntities(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	records, err := client.ListPresence(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	cursors := make([]board.Presence, 0, len(records))
	for _, p := range records {
		cursors = append(cursors, *p)
	}

	var buf bytes.Buffer
	frame := render.Compose(visible(entities), cursors, viewport.Identity())
	if err := frame.WriteASCII(&buf, cols, rows); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (s *Server) load(ctx context.Context, boardID string) ([]*board.Entity, error) {
	client, err := board.NewClientFromRedis(s.rdb, boardID)
	if err != nil {
		return nil, err
	}
	return client.ListEntities(ctx)
}

func visible(entities []*board.Entity) []*board.Entity {
	st := store.New()
	st.Replace(entities)
	return st.VisibleEntities()
}

// peer serializes writes to one WebSocket connection.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) send(msg Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(msg)
}

func (s *Server) handleCanvas(conn *websocket.Conn) {
	boardID, _ := conn.Locals("board").(string)
	id, _ := conn.Locals("identity").(board.Identity)
	out := &peer{conn: conn}

	client, err := board.NewClientFromRedis(s.rdb, boardID)
	if err != nil {
		out.send(Outbound{Type: MsgError, Message: err.Error()})
		return
	}
	cfg := s.cfg.Canvas
	cfg.Identity = id
	cv, err := canvas.New(client, cfg)
	if err != nil {
		out.send(Outbound{Type: MsgError, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Nothing may touch conn once this handler returns, so every goroutine
	// using it is joined first.
	var wg sync.WaitGroup
	done := make(chan error, 1)
	go func() { done <- cv.Run(ctx) }()
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pump(ctx, cv, out)
	}()
	reading := make(chan struct{})
	go func() {
		defer wg.Done()
		select {
		case <-s.ctx.Done():
			// Unblocks the read loop on server shutdown.
			conn.Close()
		case <-reading:
		}
	}()

	log.Printf("[Server] Session opened: board=%s user=%s", boardID, id.UserID)

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if err := dispatch(cv, msg); err != nil {
			if err := out.send(Outbound{Type: MsgError, Message: err.Error()}); err != nil {
				break
			}
		}
	}

	close(reading)
	cancel()
	wg.Wait()
	if err := <-done; err != nil {
		log.Printf("[Server] Canvas for %s stopped with error: %v", id.UserID, err)
	}
	log.Printf("[Server] Session closed: board=%s user=%s", boardID, id.UserID)
}

// pump streams frames and warnings until ctx is done.
func (s *Server) pump(ctx context.Context, cv *canvas.Canvas, out *peer) {
	select {
	case <-cv.Ready():
	case <-ctx.Done():
		return
	}

	refresh := time.NewTicker(s.cfg.FrameRefresh)
	defer refresh.Stop()

	sendFrame := func() error {
		frame := cv.Frame()
		return out.send(Outbound{
			Type:      MsgFrame,
			Frame:     &frame,
			Tool:      cv.Tool(),
			Selection: cv.Selection(),
			CanUndo:   cv.CanUndo(),
			CanRedo:   cv.CanRedo(),
		})
	}

	if err := sendFrame(); err != nil {
		return
	}
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-cv.Changes():
			err = sendFrame()
		case <-refresh.C:
			err = sendFrame()
		case w := <-cv.Warnings():
			err = out.send(Outbound{Type: MsgWarning, Message: w.Error()})
		}
		if err != nil {
			return
		}
	}
}

func dispatch(cv *canvas.Canvas, msg Inbound) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	switch msg.Type {
	case MsgPointer:
		return cv.Pointer(*msg.Pointer)
	case MsgTool:
		return cv.SetTool(msg.Tool)
	case MsgUndo:
		return cv.Undo()
	case MsgRedo:
		return cv.Redo()
	case MsgZoom:
		cv.ZoomAt(board.Point{X: msg.X, Y: msg.Y}, msg.Delta)
	case MsgPan:
		cv.Pan(msg.X, msg.Y)
	case MsgDelete:
		target := msg.EntityID
		if target == "" {
			target = cv.Selection()
		}
		if target == "" {
			return errNothingSelected
		}
		return cv.DeleteEntity(target)
	}
	return nil
}
