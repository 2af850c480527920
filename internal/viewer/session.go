package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/watchroom/server/pkg/wsconn"
)

var ErrDisconnected = errors.New("not connected to server")

const (
	defaultSyncInterval   = 5 * time.Second
	defaultReconnectDelay = 2 * time.Second
	handshakeTimeout      = 10 * time.Second
	wsPath                = "/api/v1/ws"
)

type SessionConfig struct {
	ServerURL      string
	SyncInterval   time.Duration
	ReconnectDelay time.Duration
}

// Session owns the websocket to the server. It redials after a drop and asks
// the engine to rejoin its room on every new connection.
type Session struct {
	dialer *websocket.Dialer
	wsURL  string
	clock  clock.Clock
	logger *slog.Logger
	cfg    SessionConfig

	mu   sync.Mutex
	conn *wsconn.Conn
}

func NewSession(cfg *SessionConfig, clk clock.Clock, logger *slog.Logger) (*Session, error) {
	wsURL, err := WebsocketURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	s := &Session{
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		wsURL:  wsURL,
		clock:  clk,
		logger: logger,
		cfg:    *cfg,
	}
	if s.cfg.SyncInterval <= 0 {
		s.cfg.SyncInterval = defaultSyncInterval
	}
	if s.cfg.ReconnectDelay <= 0 {
		s.cfg.ReconnectDelay = defaultReconnectDelay
	}

	return s, nil
}

// WebsocketURL maps a server base URL to its websocket endpoint.
func WebsocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server url: missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + wsPath

	return u.String(), nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}

func (s *Session) Send(messageType string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrDisconnected
	}
	if err := conn.Send(outbound{Type: messageType, Payload: payload}); err != nil {
		if errors.Is(err, wsconn.ErrClosed) {
			return ErrDisconnected
		}
		return err
	}

	return nil
}

func (s *Session) setConn(conn *wsconn.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn = conn
}

// Run keeps a connection open until ctx is done.
func (s *Session) Run(ctx context.Context, engine *Engine) error {
	for {
		err := s.serve(ctx, engine)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.WarnContext(ctx, "connection lost", "error", err, "retry_in", s.cfg.ReconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Session) serve(ctx context.Context, engine *Engine) error {
	ws, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.wsURL, err)
	}

	conn := wsconn.New(ws)
	go conn.WriteLoop()
	defer conn.Close()

	s.setConn(conn)
	defer s.setConn(nil)
	s.logger.InfoContext(ctx, "connected", "url", s.wsURL)

	if err := engine.Rejoin(); err != nil {
		return fmt.Errorf("failed to rejoin: %w", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	go s.syncLoop(engine, stop)

	conn.PrepareRead()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if err := engine.HandleMessage(data); err != nil {
			s.logger.WarnContext(ctx, "failed to handle message", "error", err)
		}
	}
}

func (s *Session) syncLoop(engine *Engine, stop <-chan struct{}) {
	ticker := s.clock.Ticker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := engine.RequestSync(); err != nil {
				s.logger.Debug("failed to request sync", "error", err)
			}
		}
	}
}
