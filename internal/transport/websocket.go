package transport

import (
	"bytes"
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/echoseal/internal/events"
	"github.com/TheMichaelB/echoseal/internal/models"
	"github.com/TheMichaelB/echoseal/internal/qr"
	"github.com/TheMichaelB/echoseal/internal/seal"
)

var errPasswordRequired = errors.New("password required")

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	logger := events.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	sess := &scanSession{
		conn:         conn,
		decoder:      s.deps.Decoder,
		logger:       logger.WithField("component", "scan_session"),
		pingInterval: s.pingInterval,
		pongTimeout:  s.pongTimeout,
		done:         make(chan struct{}),
	}
	if s.maxUpload > 0 {
		conn.SetReadLimit(s.maxUpload)
	}

	sess.run(r.Context())
}

// scanSession is one live scan connection. Binary frames carry camera
// images, text frames carry models.ScanControl messages. Each new payload
// is reported once per session.
type scanSession struct {
	conn    *websocket.Conn
	decoder *seal.Decoder
	logger  *events.Logger
	latch   seal.Latch

	password string
	// pending holds a protected payload that is waiting for a password.
	pending  string
	strategy string

	pingInterval time.Duration
	pongTimeout  time.Duration
	done         chan struct{}
}

func (s *scanSession) run(ctx context.Context) {
	defer func() {
		close(s.done)
		s.conn.Close()
	}()

	go s.pingLoop()

	s.logger.Info("Scan session started")
	if err := s.send(models.ScanEvent{Type: models.ScanTypeReady}); err != nil {
		return
	}

	deadline := s.pongTimeout + s.pingInterval
	_ = s.conn.SetReadDeadline(time.Now().Add(deadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Warn("Scan session read error")
			}
			s.logger.Info("Scan session ended")
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(deadline))

		switch mt {
		case websocket.BinaryMessage:
			err = s.handleFrame(ctx, data)
		case websocket.TextMessage:
			err = s.handleControl(ctx, data)
		}
		if err != nil {
			s.logger.WithError(err).Warn("Scan session write failed")
			return
		}
	}
}

func (s *scanSession) handleFrame(ctx context.Context, data []byte) error {
	img, err := qr.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return s.sendError(models.ErrCodeInvalidImage, err.Error(), nil)
	}

	res, ok := s.decoder.Locate(img)
	if !ok || !s.latch.Observe(res.Text) {
		return nil
	}

	s.strategy = res.Strategy
	s.pending = ""
	return s.unlock(ctx, res.Text, res.Polygon)
}

func (s *scanSession) handleControl(ctx context.Context, data []byte) error {
	msg, err := models.ParseScanControl(data)
	if err != nil {
		return s.sendError(models.ErrCodeInvalidRequest, err.Error(), nil)
	}

	switch msg.Type {
	case models.ScanTypeReset:
		s.latch.Reset()
		s.pending = ""
		return nil
	case models.ScanTypePassword:
		s.password = msg.Password
		if s.pending == "" {
			return nil
		}
		return s.unlock(ctx, s.pending, nil)
	}
	return nil
}

func (s *scanSession) unlock(ctx context.Context, text string, polygon []image.Point) error {
	passwords := seal.PasswordFunc(func(context.Context) (string, error) {
		if s.password == "" {
			return "", errPasswordRequired
		}
		return s.password, nil
	})

	rec, err := s.decoder.RecoverToken(ctx, text, passwords)
	switch {
	case errors.Is(err, errPasswordRequired):
		s.pending = text
		return s.sendError(models.ErrCodeWrongPassword, errPasswordRequired.Error(), polygon)
	case errors.Is(err, models.ErrWrongPassword):
		s.pending = text
		return s.sendError(models.ErrCodeWrongPassword, errorReplies[models.ErrCodeWrongPassword].message, polygon)
	case err != nil:
		return s.sendError(models.ErrorCode(err), err.Error(), polygon)
	}

	s.pending = ""
	return s.send(models.ScanEvent{
		Type:      models.ScanTypeMessage,
		Message:   rec.Message,
		Protected: rec.Protected,
		Strategy:  s.strategy,
		Polygon:   models.Points(polygon),
	})
}

func (s *scanSession) sendError(code, message string, polygon []image.Point) error {
	return s.send(models.ScanEvent{
		Type:     models.ScanTypeError,
		Code:     code,
		Error:    message,
		Strategy: s.strategy,
		Polygon:  models.Points(polygon),
	})
}

func (s *scanSession) send(ev models.ScanEvent) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.pongTimeout))
	return s.conn.WriteJSON(ev)
}

func (s *scanSession) pingLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(s.pongTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.WithError(err).Debug("Ping failed")
				return
			}
		case <-s.done:
			return
		}
	}
}
