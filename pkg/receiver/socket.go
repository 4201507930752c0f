// Package receiver exposes the transport endpoints reports arrive through:
// a persistent websocket for in-page browser catchers and a request/response
// HTTP endpoint for server-process catchers. Each receiver owns its
// authentication-failure and acknowledgment semantics; processing itself is
// delegated to the pipeline.
package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/armorclaw/catcher/pkg/event"
	"github.com/armorclaw/catcher/pkg/logger"
	"github.com/armorclaw/catcher/pkg/metrics"
	"github.com/armorclaw/catcher/pkg/pipeline"
)

// SocketPath is the websocket endpoint browser catchers connect to.
const SocketPath = "/catcher/client"

// Error reply texts sent to browser clients. These are wire protocol:
// deployed catcher scripts match on them.
const (
	ReplyAccessDenied  = "Access denied"
	ReplyInternalError = "Unsuccessful error catching"
)

const (
	socketReadLimit    = 512 * 1024
	socketWriteTimeout = 10 * time.Second
)

// ErrorReply is the message pushed to a browser client when its report
// could not be processed. No explicit success reply exists.
type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SocketReceiver accepts long-lived websocket connections from browser
// catchers. Every inbound message is an independent unit of work processed
// in its own goroutine; a connection close does not cancel reports already
// accepted off that connection.
type SocketReceiver struct {
	pipe     *pipeline.Pipeline
	log      *logger.Logger
	upgrader websocket.Upgrader

	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SocketConfig configures the socket receiver. A zero read timeout selects
// the default.
type SocketConfig struct {
	Addr        string
	Pipeline    *pipeline.Pipeline
	Logger      *logger.Logger
	ReadTimeout time.Duration
}

// NewSocketReceiver creates the websocket receiver.
func NewSocketReceiver(cfg SocketConfig) (*SocketReceiver, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global().WithComponent("socket-receiver")
	}

	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &SocketReceiver{
		pipe: cfg.Pipeline,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Reports come from arbitrary customer pages.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SocketPath, r.handleUpgrade)
	r.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     mux,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: 120 * time.Second,
	}

	return r, nil
}

// Start serves until Stop is called.
func (r *SocketReceiver) Start() error {
	r.log.Info("socket receiver listening", "addr", r.server.Addr, "path", SocketPath)

	err := r.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("socket receiver: %w", err)
	}
	return nil
}

// Stop shuts the listener down and waits for in-flight reports.
func (r *SocketReceiver) Stop(ctx context.Context) error {
	r.cancel()
	err := r.server.Shutdown(ctx)
	r.wg.Wait()
	return err
}

// Handler exposes the upgrade endpoint for tests.
func (r *SocketReceiver) Handler() http.Handler {
	return http.HandlerFunc(r.handleUpgrade)
}

func (r *SocketReceiver) handleUpgrade(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", "remote", req.RemoteAddr, "error", err)
		return
	}

	r.wg.Add(1)
	go r.readLoop(newSocketConn(conn))
}

// readLoop consumes messages from one connection. Decode failures produce
// an error reply but keep the connection open; only an access denial closes
// it from our side.
func (r *SocketReceiver) readLoop(conn *socketConn) {
	defer r.wg.Done()
	defer conn.close()

	conn.ws.SetReadLimit(socketReadLimit)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.log.Warn("socket read failed", "error", err)
			}
			return
		}

		metrics.ReportsReceived.WithLabelValues(metrics.TransportSocket).Inc()

		// Each message is processed to completion independently of the
		// connection lifetime, so the pipeline runs off the receiver's
		// context rather than the connection's.
		r.wg.Add(1)
		go func(data []byte) {
			defer r.wg.Done()
			r.handleMessage(conn, data)
		}(data)
	}
}

func (r *SocketReceiver) handleMessage(conn *socketConn, data []byte) {
	var report event.BrowserReport
	if err := json.Unmarshal(data, &report); err != nil {
		metrics.ReportsRejected.WithLabelValues(metrics.TransportSocket, metrics.ReasonMalformed).Inc()
		r.log.Warn("undecodable report", "error", err)
		conn.sendError(ReplyInternalError)
		return
	}

	r.log.Info("got javascript error", "host", report.Location.Host)

	err := r.pipe.ProcessBrowser(r.ctx, &report)
	if err == nil {
		return
	}

	if pipeline.IsAccessDenied(err) {
		metrics.ReportsRejected.WithLabelValues(metrics.TransportSocket, metrics.ReasonAccessDenied).Inc()
		r.log.Warn("report rejected", "host", report.Location.Host, "error", err)
		conn.sendError(ReplyAccessDenied)
		conn.close()
		return
	}

	metrics.ReportsRejected.WithLabelValues(metrics.TransportSocket, metrics.ReasonInternal).Inc()
	r.log.Error("report handling failed", "host", report.Location.Host, "error", err)
	conn.sendError(ReplyInternalError)
}

// socketConn serializes writes to one websocket connection; gorilla
// supports one concurrent writer only, and replies come from per-message
// goroutines.
type socketConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newSocketConn(ws *websocket.Conn) *socketConn {
	return &socketConn{ws: ws}
}

func (c *socketConn) sendError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	if err := c.ws.WriteJSON(ErrorReply{Type: "error", Message: message}); err != nil {
		// Connection already gone; the read loop will notice.
		return
	}
}

func (c *socketConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.Close()
}
