package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
)

// ScanClient streams frames to a server's live scan endpoint.
type ScanClient struct {
	url    string
	logger *events.Logger

	// Connection state
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	// Channels
	events chan models.ScanEvent
	errors chan error
	done   chan struct{}

	// Heartbeat
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewScanClient creates a live scan client. http(s) base URLs are
// converted to ws(s).
func NewScanClient(baseURL string, logger *events.Logger) *ScanClient {
	url := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(url, "http") {
		url = "ws" + url[4:]
	}
	if !strings.HasSuffix(url, "/ws/scan") {
		url += "/ws/scan"
	}

	return &ScanClient{
		url:          url,
		logger:       logger.WithField("component", "scan_client"),
		events:       make(chan models.ScanEvent, 16),
		errors:       make(chan error, 1),
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
	}
}

// Connect dials the server.
func (c *ScanClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	c.logger.WithField("url", c.url).Info("Connecting to scan endpoint")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connect failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connect failed: %w", err)
	}

	c.conn = conn
	c.closed = false

	go c.readLoop()
	go c.pingLoop()

	return nil
}

// SendFrame sends an encoded camera image.
func (c *ScanClient) SendFrame(data []byte) error {
	return c.write(func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.BinaryMessage, data)
	})
}

// SendPassword sets the password used for protected seals.
func (c *ScanClient) SendPassword(password string) error {
	return c.write(func(conn *websocket.Conn) error {
		return conn.WriteJSON(models.ScanControl{Type: models.ScanTypePassword, Password: password})
	})
}

// Reset re-arms the server's latch.
func (c *ScanClient) Reset() error {
	return c.write(func(conn *websocket.Conn) error {
		return conn.WriteJSON(models.ScanControl{Type: models.ScanTypeReset})
	})
}

// Events returns the event channel. It is closed when the connection ends.
func (c *ScanClient) Events() <-chan models.ScanEvent {
	return c.events
}

// Errors returns the error channel.
func (c *ScanClient) Errors() <-chan error {
	return c.errors
}

// Close closes the connection.
func (c *ScanClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

func (c *ScanClient) write(fn func(*websocket.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return fn(c.conn)
}

func (c *ScanClient) readLoop() {
	defer func() {
		c.Close()
		close(c.events)
		close(c.errors)
	}()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.pongTimeout + c.pingInterval))

		var ev models.ScanEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Error("Scan read error")
				c.errors <- err
			}
			return
		}

		c.logger.WithField("type", ev.Type).Debug("Received scan event")

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *ScanClient) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := c.write(func(conn *websocket.Conn) error {
				return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pongTimeout))
			})
			if err != nil {
				c.logger.WithError(err).Debug("Ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}
