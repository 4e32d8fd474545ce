package models

import (
	"encoding/json"
	"fmt"
	"image"
)

// ScanMessageType defines live scan message types.
type ScanMessageType string

const (
	// Client to server, text frames. Image frames are sent as binary.
	ScanTypePassword ScanMessageType = "password"
	ScanTypeReset    ScanMessageType = "reset"

	// Server to client
	ScanTypeReady   ScanMessageType = "ready"
	ScanTypeMessage ScanMessageType = "message"
	ScanTypeError   ScanMessageType = "error"
)

// ScanControl is a text frame sent by a live scan client.
type ScanControl struct {
	Type     ScanMessageType `json:"type"`
	Password string          `json:"password,omitempty"`
}

// Point is a polygon vertex on the wire.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ScanEvent is sent to the client for every new seal seen.
type ScanEvent struct {
	Type      ScanMessageType `json:"type"`
	Message   string          `json:"message,omitempty"`
	Protected bool            `json:"protected,omitempty"`
	Strategy  string          `json:"strategy,omitempty"`
	Polygon   []Point         `json:"polygon,omitempty"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Points converts image points for the wire.
func Points(pts []image.Point) []Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X, Y: p.Y}
	}
	return out
}

// ParseScanControl parses a text frame.
func ParseScanControl(data []byte) (*ScanControl, error) {
	var msg ScanControl
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse scan control: %w", err)
	}

	switch msg.Type {
	case ScanTypePassword, ScanTypeReset:
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown scan control type %q", msg.Type)
	}
}

// UnsealResponse is the body of a successful unseal request.
type UnsealResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Protected bool   `json:"protected"`
	Strategy  string `json:"strategy,omitempty"`
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
