// Package server exposes boards over HTTP for remote renderers.
//
// Every WebSocket connection gets its own canvas.Canvas: the server runs the
// drawing session, history and presence for the remote user and streams
// composed frames back, so a renderer only has to paint display lists and
// forward pointer events.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/pkg/board"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Config configures a Server.
type Config struct {
	Addr string
	// Canvas is the template for per-connection canvases. Its identity is
	// replaced by the connecting user's.
	Canvas canvas.Config
	// FrameRefresh resends the frame even without changes, so expired
	// cursors disappear.
	FrameRefresh time.Duration
	// AccessLog enables the request logger middleware.
	AccessLog bool
}

// Server serves the HTTP API and WebSocket canvas sessions.
type Server struct {
	app  *fiber.App
	rdb  *redis.Client
	cfg  Config
	ctx  context.Context
	stop context.CancelFunc
}

// New builds the fiber app with its middleware and routes.
func New(rdb *redis.Client, cfg Config) *Server {
	if cfg.FrameRefresh <= 0 {
		cfg.FrameRefresh = time.Second
	}

	app := fiber.New(fiber.Config{
		AppName:               "easel",
		StrictRouting:         true,
		CaseSensitive:         true,
		DisableStartupMessage: true,
	})

	ctx, stop := context.WithCancel(context.Background())
	s := &Server{app: app, rdb: rdb, cfg: cfg, ctx: ctx, stop: stop}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// App returns the underlying fiber app, for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	if s.cfg.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, OPTIONS",
	}))
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api/boards/:board", s.requireBoard)
	api.Get("/entities", s.listEntities)
	api.Get("/frame", s.renderFrame)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/boards/:board", s.requireBoard, s.requireIdentity, websocket.New(s.handleCanvas, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
	}))
}

// Start listens on the configured address until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	log.Printf("[Server] Listening on %s", ln.Addr())
	log.Printf("[Server] WebSocket endpoint: ws://%s/ws/boards/<board>?user=<id>", ln.Addr())

	select {
	case err := <-errc:
		s.stop()
		return err
	case <-ctx.Done():
		log.Printf("[Server] Shutting down...")
		return s.Shutdown()
	}
}

// Shutdown closes every canvas session and stops the listener.
func (s *Server) Shutdown() error {
	s.stop()
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// requireBoard validates the :board route parameter.
func (s *Server) requireBoard(c *fiber.Ctx) error {
	boardID := c.Params("board")
	if err := board.ValidateBoardID(boardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	c.Locals("board", boardID)
	return c.Next()
}

// requireIdentity reads the collaborator identity from the query string.
func (s *Server) requireIdentity(c *fiber.Ctx) error {
	id := board.Identity{
		UserID:      c.Query("user"),
		DisplayName: c.Query("name"),
		Color:       c.Query("color", "#607d8b"),
	}
	if id.DisplayName == "" {
		id.DisplayName = id.UserID
	}
	if err := id.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	c.Locals("identity", id)
	return c.Next()
}
