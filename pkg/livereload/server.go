// Package livereload implements the development server: it serves the
// source tree, injects a small client script into HTML pages and pushes
// reload or stylesheet-injection messages to connected browsers over a
// websocket.
package livereload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var serverLog = logger.New("livereload:server")

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	sendBuffer      = 8
)

// Message is pushed to every connected browser.
type Message struct {
	Type  string   `json:"type"`
	Paths []string `json:"paths,omitempty"`
}

// Message types.
const (
	TypeReload = "reload"
	TypeCSS    = "css"
)

// Server is a static file server with live reload.
type Server struct {
	root    string
	addr    string
	metrics http.Handler

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address used by ListenAndServe.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithMetrics mounts h on the metrics path.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New returns a server for the directory root.
func New(root string, opts ...Option) *Server {
	s := &Server{
		root:    root,
		addr:    constants.DefaultServeAddr,
		clients: make(map[*client]struct{}),
	}
	// The dev server only listens locally; any page it serves may connect.
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.LiveReloadSocketPath, s.serveSocket)
	mux.HandleFunc(constants.LiveReloadScriptPath, serveScript)
	if s.metrics != nil {
		mux.Handle(constants.MetricsPath, s.metrics)
	}
	mux.Handle("/", &staticHandler{root: http.Dir(s.root)})
	return mux
}

// ListenAndServe serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serverLog.Printf("Listening on %s, serving %s", s.addr, s.root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	serverLog.Print("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.disconnectAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Reload tells every browser to reload the page.
func (s *Server) Reload() {
	s.broadcast(Message{Type: TypeReload})
}

// Inject tells every browser to refresh the stylesheets at paths without
// reloading the page. paths are URL paths relative to the served root.
func (s *Server) Inject(paths []string) {
	if len(paths) == 0 {
		return
	}
	s.broadcast(Message{Type: TypeCSS, Paths: paths})
}

func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		serverLog.Printf("Failed to encode %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	serverLog.Printf("Broadcasting %s to %d client(s)", msg.Type, len(s.clients))
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			serverLog.Print("Client is not keeping up, dropping message")
		}
	}
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLog.Printf("Websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	serverLog.Printf("Client connected from %s", r.RemoteAddr)

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop discards client messages until the connection drops.
func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			serverLog.Printf("Write failed: %v", err)
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

func (s *Server) disconnectAll() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
