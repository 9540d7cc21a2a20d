package feed

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/kalshi-hedger/internal/auth"
)

var (
	errNotConnected    = errors.New("not connected")
	errStaleConnection = errors.New("connection stale (no ping)")
)

// timestampedMessage wraps raw message bytes with the local receive time.
type timestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// conn is one WebSocket connection. It reads into a buffered channel and
// keeps the connection alive with pings; a stale connection surfaces on the
// errors channel so the owning loop can reconnect.
type conn struct {
	url          string
	creds        *auth.Credentials
	pingInterval time.Duration
	readTimeout  time.Duration
	logger       *slog.Logger

	ws *websocket.Conn

	messages chan timestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	lastPongAt time.Time
}

func newConn(url string, creds *auth.Credentials, pingInterval, readTimeout time.Duration, logger *slog.Logger) *conn {
	return &conn{
		url:          url,
		creds:        creds,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
		logger:       logger,
		messages:     make(chan timestampedMessage, 4096),
		errors:       make(chan error, 1),
		done:         make(chan struct{}),
	}
}

// connect dials and starts the read and heartbeat goroutines.
func (c *conn) connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.creds != nil {
		signed, err := c.creds.SignWebSocket()
		if err != nil {
			return err
		}
		for k, v := range signed {
			header.Set(k, v)
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	ws.SetPingHandler(func(data string) error {
		c.touch()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	ws.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("websocket connected", "url", c.url)
	return nil
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastPongAt = time.Now()
	c.mu.Unlock()
}

// close tears the connection down. Safe to call more than once.
func (c *conn) close() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	ws := c.ws
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		_ = ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = ws.Close()
	}
}

// send writes one text frame. Writes are serialized.
func (c *conn) send(data []byte) error {
	c.mu.RLock()
	connected := c.connected
	ws := c.ws
	c.mu.RUnlock()
	if !connected {
		return errNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-c.done:
			default:
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}

		select {
		case c.messages <- timestampedMessage{Data: data, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("feed buffer full, dropping message")
		}
	}
}

func (c *conn) heartbeatLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			ws := c.ws
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if ws != nil {
				deadline := time.Now().Add(5 * time.Second)
				if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					c.logger.Debug("ping write failed", "err", err)
				}
			}

			if time.Since(lastPong) > c.readTimeout {
				c.logger.Warn("no pong received, connection stale", "last_pong", lastPong)
				select {
				case c.errors <- errStaleConnection:
				default:
				}
				return
			}
		}
	}
}
