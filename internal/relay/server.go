package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Error texts sent back to a misbehaving or unlucky sender. These are
// part of the wire contract; clients match on them.
const (
	errMissingClientID = "Error: Missing 'client_id' in identification message."
	errTargetNotFound  = "Error: Target client not found."
	errInvalidFormat   = "Error: Invalid message format."
	errDecodeFailed    = "Error: Failed to decode message."
)

// serverID is the reserved target id. Envelopes addressed to it are
// dropped without an error; it lets clients ping the hub itself.
const serverID = "Server"

// Server is the relay hub. It accepts WebSocket clients, requires an
// identification message as the first frame, then routes envelopes
// between identified peers. The hub never interprets payloads.
type Server struct {
	address         string
	logger          *slog.Logger
	upgrader        websocket.Upgrader
	shutdownTimeout time.Duration

	mu      sync.Mutex
	clients map[string]*peer

	ready chan struct{}
	addr  net.Addr
}

// peer is one identified connection. Writes go through the peer's own
// mutex since gorilla connections allow one concurrent writer.
type peer struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (p *peer) send(messageType int, data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.WriteMessage(messageType, data)
}

// NewServer creates a hub that will listen on address. Nil logger
// falls back to slog.Default.
func NewServer(address string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:         address,
		logger:          logger,
		upgrader:        websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		shutdownTimeout: 5 * time.Second,
		clients:         make(map[string]*peer),
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the listener is bound and accepting.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the resolved listen address; valid after Ready closes.
// Useful when address was bound with port 0.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// ListenAndServe blocks until ctx is cancelled, then shuts the
// listener down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	srv := &http.Server{Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	s.logger.Info("relay server listening", "addr", s.addr.String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down relay server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ServeHTTP upgrades the connection and runs the client loop. Exposed
// so tests can mount the hub on an httptest server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.handleClient(conn)
}

func (s *Server) handleClient(conn *websocket.Conn) {
	defer conn.Close()

	// First frame must identify the client.
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var ident Identification
	if err := json.Unmarshal(raw, &ident); err != nil || ident.ClientID == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(errMissingClientID))
		return
	}

	p := &peer{id: ident.ClientID, conn: conn}
	s.register(p)
	defer s.unregister(p)

	s.logger.Info("client connected", "client_id", p.id)
	if err := p.send(websocket.TextMessage, []byte("Welcome "+p.id)); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("client disconnected", "client_id", p.id)
			return
		}
		s.route(p, raw)
	}
}

// route forwards one envelope from sender. Malformed traffic produces
// an error frame back to the sender, never a dropped connection.
func (s *Server) route(sender *peer, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.sendError(sender, errDecodeFailed)
		return
	}
	if env.TargetID == "" || env.Message == "" {
		s.sendError(sender, errInvalidFormat)
		return
	}

	var body json.RawMessage
	if err := json.Unmarshal([]byte(env.Message), &body); err != nil {
		s.sendError(sender, errDecodeFailed)
		return
	}

	if env.TargetID == serverID {
		return
	}

	wrapped, err := json.Marshal(Delivery{Sender: sender.id, Body: body})
	if err != nil {
		s.sendError(sender, errDecodeFailed)
		return
	}

	target, ok := s.lookup(env.TargetID)
	if !ok {
		s.sendError(sender, errTargetNotFound)
		return
	}
	if err := target.send(websocket.TextMessage, wrapped); err != nil {
		s.logger.Warn("delivering to target", "target_id", env.TargetID, "error", err)
		s.unregister(target)
		s.sendError(sender, errTargetNotFound)
	}
}

func (s *Server) sendError(p *peer, text string) {
	if err := p.send(websocket.TextMessage, []byte(text)); err != nil {
		s.unregister(p)
	}
}

func (s *Server) register(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A reconnecting client replaces its stale registration.
	if old, ok := s.clients[p.id]; ok {
		_ = old.conn.Close()
	}
	s.clients[p.id] = p
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[p.id] == p {
		delete(s.clients, p.id)
	}
}

func (s *Server) lookup(id string) (*peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.clients[id]
	return p, ok
}

// ClientIDs returns the ids of currently identified clients.
func (s *Server) ClientIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	return ids
}
