package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var errHandlerClosed = errors.New("connection ended by handler")

// Handler receives the frames and lifecycle of supervised connections
type Handler interface {
	// Greeting returns the first frame for a new player, or nil. It is queued
	// before the peer is registered.
	Greeting(player string) any
	// HandleMessage processes one inbound frame; a non-nil error ends the connection
	HandleMessage(player string, data []byte) error
	// Leave is called once, after the peer has been unregistered
	Leave(player string)
}

// Config holds the per-connection limits of the supervisor
type Config struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int64
	// Outbound queue length per peer.
	SendBuffer int
	// Inbound frames per second per connection; zero disables limiting.
	RateLimit float64
	RateBurst int
	// Origins allowed to connect; empty allows all.
	AllowedOrigins []string
}

// DefaultConfig returns the keepalive settings used by the hub
func DefaultConfig() Config {
	pongWait := 60 * time.Second
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       pongWait,
		PingPeriod:     (pongWait * 9) / 10,
		MaxMessageSize: 4096,
		SendBuffer:     256,
		RateLimit:      20,
		RateBurst:      40,
	}
}

// Option configures a Server
type Option func(*Server)

func WithConfig(cfg Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithIDGenerator replaces the UUID player id generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// Server accepts WebSocket connections and supervises their read and write
// duties. Ending either duty ends both.
type Server struct {
	registry *Registry
	handler  Handler
	upgrader websocket.Upgrader
	cfg      Config
	log      logrus.FieldLogger
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a supervisor that registers peers in registry and feeds
// their frames to handler.
func NewServer(registry *Registry, handler Handler, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		registry: registry,
		handler:  handler,
		cfg:      DefaultConfig(),
		log:      logrus.StandardLogger(),
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeWS upgrades the request and blocks until the connection ends
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	log := s.log.WithField("remote_addr", r.RemoteAddr)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	peer := NewPeer(s.newID(), s.cfg.SendBuffer)
	log = log.WithField("player_id", peer.ID())

	// the greeting goes in before Register so no broadcast can overtake it
	if greeting := s.handler.Greeting(peer.ID()); greeting != nil {
		if err := peer.Prime(greeting); err != nil {
			log.WithError(err).Error("Failed to queue greeting")
			conn.Close()
			return
		}
	}
	if err := s.registry.Register(peer); err != nil {
		log.WithError(err).Error("Failed to register peer")
		conn.Close()
		return
	}
	log.Info("Client connected")

	err = s.serve(conn, peer, log)

	s.registry.Unregister(peer.ID())
	s.handler.Leave(peer.ID())

	entry := log.WithField("reason", err)
	switch {
	case errors.Is(err, ErrSlowConsumer):
		entry.Warn("Client evicted")
	case isExpectedClose(err):
		entry.Info("Client disconnected")
	default:
		entry.Warn("Client connection failed")
	}
}

func (s *Server) serve(conn *websocket.Conn, peer *Peer, log logrus.FieldLogger) error {
	g, ctx := errgroup.WithContext(s.ctx)

	g.Go(func() error {
		return s.readPump(conn, peer, log)
	})
	g.Go(func() error {
		return s.writePump(ctx, conn, peer)
	})
	g.Go(func() error {
		// Closing the socket is what unblocks ReadMessage, and a blocked
		// WriteMessage when the peer was evicted.
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
		case <-peer.Kicked():
		}
		conn.Close()
		return nil
	})

	err := g.Wait()
	select {
	case <-peer.Kicked():
		return ErrSlowConsumer
	default:
		return err
	}
}

// readPump pumps frames from the connection to the handler.
// It never returns nil, so its end always cancels the write duty.
func (s *Server) readPump(conn *websocket.Conn, peer *Peer, log logrus.FieldLogger) error {
	conn.SetReadLimit(s.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		if limiter != nil && !limiter.Allow() {
			log.Warn("Inbound rate limit exceeded, dropping frame")
			continue
		}

		if err := s.handler.HandleMessage(peer.ID(), data); err != nil {
			return fmt.Errorf("%w: %w", errHandlerClosed, err)
		}
	}
}

// writePump pumps queued frames to the connection, one WebSocket message per
// frame, and keeps the connection alive with pings.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, peer *Peer) error {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-peer.Kicked():
			return ErrSlowConsumer

		case data := <-peer.Outbound():
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("write: %w", err)
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// Shutdown stops accepting connections, ends every supervised connection and
// waits for them to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients do not send an Origin.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// isExpectedClose reports errors that end a connection in the normal course
// of things: client close, client going away, or server shutdown.
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, errHandlerClosed) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		switch ce.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return false
}
