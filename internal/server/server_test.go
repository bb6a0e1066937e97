package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/easel/internal/canvas"
	"github.com/dyluth/easel/internal/drawing"
	"github.com/dyluth/easel/internal/render"
	"github.com/dyluth/easel/pkg/board"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client, *Server) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := canvas.DefaultConfig(board.Identity{})
	cfg.TickInterval = 10 * time.Millisecond
	return mr, rdb, New(rdb, Config{Addr: "127.0.0.1:0", Canvas: cfg, FrameRefresh: time.Hour})
}

func seed(t *testing.T, rdb *redis.Client, boardID string, deleted bool) string {
	t.Helper()
	client, err := board.NewClientFromRedis(rdb, boardID)
	require.NoError(t, err)
	e := &board.Entity{ID: uuid.New().String(), OwnerID: "ada", Shape: &board.Rectangle{
		Position:    board.Point{X: 8, Y: 16},
		Size:        board.Size{Width: 32, Height: 32},
		Color:       "#000000",
		StrokeWidth: 1,
	}}
	require.NoError(t, client.CreateEntity(context.Background(), e))
	if deleted {
		_, err := client.SetDeleted(context.Background(), e.ID, true)
		require.NoError(t, err)
	}
	return e.ID
}

func TestHealth(t *testing.T) {
	mr, _, s := setup(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["redis"].Status)

	mr.Close()
	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListEntities(t *testing.T) {
	_, rdb, s := setup(t)
	live := seed(t, rdb, "team", false)
	seed(t, rdb, "team", true)
	seed(t, rdb, "other", false)

	get := func(url string) (int, EntitiesResponse) {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, url, nil))
		require.NoError(t, err)
		var body EntitiesResponse
		if resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		}
		return resp.StatusCode, body
	}

	status, body := get("/api/boards/team/entities")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "team", body.Board)
	require.Len(t, body.Entities, 1)
	assert.Equal(t, live, body.Entities[0].ID)

	_, body = get("/api/boards/team/entities?all=true")
	assert.Len(t, body.Entities, 2)

	_, body = get("/api/boards/empty/entities")
	assert.NotNil(t, body.Entities)
	assert.Empty(t, body.Entities)

	status, _ = get("/api/boards/Not_Valid/entities")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRenderFrame(t *testing.T) {
	_, rdb, s := setup(t)
	seed(t, rdb, "team", false)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/boards/team/frame?cols=10&rows=4", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(text), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, " +---+    ", lines[1])

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/boards/team/frame?cols=0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRenderFrameBackendDown(t *testing.T) {
	mr, rdb, s := setup(t)
	seed(t, rdb, "team", false)
	mr.Close()

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/boards/team/frame?cols=10&rows=4", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}

func TestWebSocketRequiresUpgradeAndIdentity(t *testing.T) {
	_, _, s := setup(t)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/boards/team?user=ada", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	addr := serve(t, s)
	_, resp, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws/boards/team", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func serve(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Outbound) bool) Outbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg Outbound
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestCanvasSession(t *testing.T) {
	_, rdb, s := setup(t)
	addr := serve(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/boards/team?user=ada&name=Ada", nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readUntil(t, conn, func(m Outbound) bool { return m.Type == MsgFrame })
	assert.Empty(t, first.Frame.Items)
	assert.Equal(t, drawing.ToolSelect, first.Tool)

	send := func(msg Inbound) { require.NoError(t, conn.WriteJSON(msg)) }
	send(Inbound{Type: MsgTool, Tool: drawing.ToolSticky})
	send(Inbound{Type: MsgPointer, Pointer: &render.PointerEvent{Type: render.PointerDown, X: 40, Y: 30}})
	send(Inbound{Type: MsgPointer, Pointer: &render.PointerEvent{Type: render.PointerUp, X: 40, Y: 30}})

	drawn := readUntil(t, conn, func(m Outbound) bool { return m.Type == MsgFrame && len(m.Frame.Items) == 1 })
	assert.Equal(t, board.KindSticky, drawn.Frame.Items[0].Kind)
	assert.True(t, drawn.CanUndo)
	assert.NotEmpty(t, drawn.Selection)

	client, err := board.NewClientFromRedis(rdb, "team")
	require.NoError(t, err)
	stored, err := client.ListEntities(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "ada", stored[0].OwnerID)

	send(Inbound{Type: MsgUndo})
	readUntil(t, conn, func(m Outbound) bool { return m.Type == MsgFrame && len(m.Frame.Items) == 0 && m.CanRedo })

	send(Inbound{Type: "teleport"})
	bad := readUntil(t, conn, func(m Outbound) bool { return m.Type == MsgError })
	assert.Contains(t, bad.Message, "unknown message type")
}

func TestInboundValidate(t *testing.T) {
	assert.NoError(t, Inbound{Type: MsgUndo}.Validate())
	assert.NoError(t, Inbound{Type: MsgTool, Tool: drawing.ToolPen}.Validate())
	assert.Error(t, Inbound{Type: MsgTool, Tool: "laser"}.Validate())
	assert.Error(t, Inbound{Type: MsgPointer}.Validate())
	assert.Error(t, Inbound{Type: MsgPointer, Pointer: &render.PointerEvent{Type: "hover"}}.Validate())
	assert.Error(t, Inbound{}.Validate())
}
