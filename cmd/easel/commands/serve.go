package commands

import (
	"time"

	"github.com/dyluth/easel/internal/printer"
	"github.com/dyluth/easel/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveRefresh   time.Duration
	serveAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve boards over HTTP and WebSocket",
	Long: `Serve every board on the configured Redis to remote renderers.

Endpoints:
  GET /health                                   Redis health check
  GET /api/boards/<board>/entities[?all=true]   Entity snapshot as JSON
  GET /api/boards/<board>/frame?cols=&rows=     ASCII rendering
  GET /ws/boards/<board>?user=&name=&color=     Live canvas session

Each WebSocket connection gets its own canvas client with the connecting
user's identity and its own undo history. The client sends pointer, tool,
zoom, pan, delete and undo/redo messages and receives frames.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr from the configuration)")
	serveCmd.Flags().DurationVar(&serveRefresh, "refresh", time.Second, "Resend frames at least this often")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", true, "Log every HTTP request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg, rdb, err := connect(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(rdb, server.Config{
		Addr:         addr,
		Canvas:       cfg.CanvasConfig(),
		FrameRefresh: serveRefresh,
		AccessLog:    serveAccessLog,
	})

	printer.Success("Serving on %s (Ctrl-C to stop)\n", addr)
	if err := srv.Start(ctx); err != nil {
		return printer.Error("server failed", err.Error(), []string{"Pick another address:\n  easel serve --addr :8081"})
	}
	return nil
}
