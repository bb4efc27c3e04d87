package surface

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"recorder/internal/logging"
	"recorder/internal/protocol"
	"recorder/internal/session"
)

// MethodError is pushed to a single client whose frame was rejected.
const MethodError = "error"

// Controller is what inbound events are handed to.
type Controller interface {
	Submit(ev protocol.Event)
	State() (session.State, error)
}

// Config tunes the server.
type Config struct {
	Addr           string
	MaxMessageSize int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	// EventsPerSecond and Burst bound each client's inbound frames.
	EventsPerSecond float64
	Burst           int
}

// DefaultConfig returns a server config listening on localhost.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:9323",
		MaxMessageSize:  1 << 20,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		EventsPerSecond: 50,
		Burst:           100,
	}
}

// Server accepts control-surface connections.
type Server struct {
	cfg      Config
	hub      *Hub
	echo     *echo.Echo
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	ctrl     Controller
	listener net.Listener
	pumps    sync.WaitGroup
}

// NewServer builds the routes. Bind a controller before clients send
// events; frames arriving earlier are answered with an error.
func NewServer(cfg Config, hub *Hub) *Server {
	def := DefaultConfig()
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = def.EventsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	s := &Server{
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The surface is served to a local inspector window.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.GET("/ws", s.handleWebSocket)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo = e
	return s
}

// Bind sets the controller that receives inbound events.
func (s *Server) Bind(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = ctrl
}

func (s *Server) controller() Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctrl
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.echo.Listener = ln

	logging.Surface("control surface listening on %s", ln.Addr())
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.SurfaceError("control surface stopped: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown disconnects clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	err := s.echo.Shutdown(ctx)
	s.pumps.Wait()
	return err
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logging.SurfaceWarn("websocket upgrade failed: %v", err)
		return nil
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	cl := s.hub.newClient(conn)
	s.hub.register(cl)
	s.sendState(cl)

	s.pumps.Add(2)
	go s.writePump(cl)
	go s.readPump(cl)
	return nil
}

// sendState brings a new client up to date.
func (s *Server) sendState(cl *client) {
	ctrl := s.controller()
	if ctrl == nil {
		return
	}
	st, err := ctrl.State()
	if err != nil {
		logging.SurfaceWarn("client %s: no state to send: %v", cl.id, err)
		return
	}
	msgs := []protocol.Message{
		protocol.SetModeMessage(st.Mode),
		protocol.SetPausedMessage(st.Paused),
		protocol.SetSourcesMessage(st.Sources),
		protocol.SelectSourceMessage(st.SelectedID),
		protocol.SetPageURLMessage(st.PageURL),
		protocol.UpdateCallLogsMessage(st.CallLogs),
	}
	for _, m := range msgs {
		if err := s.hub.sendTo(cl, m); err != nil {
			logging.SurfaceWarn("client %s: initial %s: %v", cl.id, m.Method, err)
			return
		}
	}
}

func (s *Server) readPump(cl *client) {
	defer func() {
		s.hub.unregister(cl)
		cl.conn.Close()
		s.pumps.Done()
	}()

	limiter := rate.NewLimiter(rate.Limit(s.cfg.EventsPerSecond), s.cfg.Burst)
	cl.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.SurfaceWarn("client %s: read: %v", cl.id, err)
			}
			return
		}
		cl.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		if !limiter.Allow() {
			metricFrames.WithLabelValues("throttled").Inc()
			s.reject(cl, "", "rate limit exceeded")
			continue
		}
		s.handleFrame(cl, data)
	}
}

func (s *Server) handleFrame(cl *client, data []byte) {
	ev, err := protocol.Decode(data)
	if err != nil {
		metricFrames.WithLabelValues("rejected").Inc()
		var perr *protocol.Error
		name := ""
		if errors.As(err, &perr) {
			name = perr.Event
		}
		logging.SurfaceDebug("client %s: rejected frame: %v", cl.id, err)
		s.reject(cl, name, err.Error())
		return
	}

	ctrl := s.controller()
	if ctrl == nil {
		metricFrames.WithLabelValues("rejected").Inc()
		s.reject(cl, ev.Name(), "no session attached")
		return
	}
	metricFrames.WithLabelValues("accepted").Inc()
	logging.SurfaceDebug("client %s: %s", cl.id, ev.Name())
	ctrl.Submit(ev)
}

func (s *Server) reject(cl *client, event, reason string) {
	msg := protocol.Message{Method: MethodError, Params: map[string]string{"event": event, "error": reason}}
	if err := s.hub.sendTo(cl, msg); err != nil {
		logging.SurfaceWarn("client %s: %v", cl.id, err)
	}
}

func (s *Server) writePump(cl *client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
		s.pumps.Done()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = cl.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.write(websocket.TextMessage, data); err != nil {
				logging.SurfaceWarn("client %s: write: %v", cl.id, err)
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := cl.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
