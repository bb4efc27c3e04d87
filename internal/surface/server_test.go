package surface

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recorder/internal/codegen"
	"recorder/internal/protocol"
	"recorder/internal/session"
)

type fakeController struct {
	events chan protocol.Event
	state  session.State
}

func (f *fakeController) Submit(ev protocol.Event)      { f.events <- ev }
func (f *fakeController) State() (session.State, error) { return f.state, nil }

type received struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func startServer(t *testing.T, cfg Config, ctrl Controller) (*Server, *Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := NewServer(cfg, hub)
	if ctrl != nil {
		srv.Bind(ctrl)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, hub, ts.URL
}

func dial(t *testing.T, base string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func next(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func newController() *fakeController {
	return &fakeController{
		events: make(chan protocol.Event, 16),
		state: session.State{
			Mode:       protocol.ModeRecording,
			Sources:    []codegen.Source{{ID: "playwright-test", Text: "test()"}},
			SelectedID: "playwright-test",
			PageURL:    "https://example.test/",
		},
	}
}

func TestConnectSendsState(t *testing.T) {
	_, _, url := startServer(t, Config{}, newController())
	conn := dial(t, url)

	var methods []string
	for range 6 {
		methods = append(methods, next(t, conn).Method)
	}
	assert.Equal(t, []string{
		protocol.MethodSetMode,
		protocol.MethodSetPaused,
		protocol.MethodSetSources,
		protocol.MethodSelectSource,
		protocol.MethodSetPageURL,
		protocol.MethodUpdateCallLogs,
	}, methods)
}

func TestInboundEventsReachController(t *testing.T) {
	ctrl := newController()
	_, _, url := startServer(t, Config{}, ctrl)
	conn := dial(t, url)

	frame := `{"event":"performAction","params":{"locator":"#submit","action":"click"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	select {
	case ev := <-ctrl.events:
		assert.Equal(t, protocol.PerformAction{Locator: "#submit", Action: "click"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMalformedFrameIsRejected(t *testing.T) {
	ctrl := newController()
	_, _, url := startServer(t, Config{}, ctrl)
	conn := dial(t, url)
	for range 6 {
		next(t, conn)
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"teleport"}`)))
	msg := next(t, conn)
	assert.Equal(t, MethodError, msg.Method)

	var params map[string]string
	require.NoError(t, json.Unmarshal(msg.Params, &params))
	assert.Equal(t, "teleport", params["event"])
	assert.NotEmpty(t, params["error"])
	assert.Empty(t, ctrl.events)
}

func TestFramesWithoutControllerAreRejected(t *testing.T) {
	_, _, url := startServer(t, Config{}, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"clear"}`)))
	msg := next(t, conn)
	assert.Equal(t, MethodError, msg.Method)
	assert.Contains(t, string(msg.Params), "no session attached")
}

func TestInboundRateLimit(t *testing.T) {
	ctrl := newController()
	_, _, url := startServer(t, Config{EventsPerSecond: 0.001, Burst: 1}, ctrl)
	conn := dial(t, url)
	for range 6 {
		next(t, conn)
	}

	for range 2 {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"pause"}`)))
	}
	msg := next(t, conn)
	assert.Equal(t, MethodError, msg.Method)
	assert.Contains(t, string(msg.Params), "rate limit exceeded")
	assert.Len(t, ctrl.events, 1)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	_, hub, url := startServer(t, Config{}, nil)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SetPaused(true))
	for _, conn := range []*websocket.Conn{a, b} {
		msg := next(t, conn)
		assert.Equal(t, protocol.MethodSetPaused, msg.Method)
		assert.JSONEq(t, `{"paused":true}`, string(msg.Params))
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	require.NoError(t, hub.SetMode(protocol.ModeStandby))
	assert.Equal(t, 0, hub.Clients())
}

func TestShutdownDisconnectsClients(t *testing.T) {
	srv, hub, url := startServer(t, Config{}, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, url := startServer(t, Config{}, nil)

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	resp2, err := http.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	data, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "recorder_surface_clients")
}
