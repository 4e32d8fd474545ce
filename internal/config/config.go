package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// QR rendering and detection
	QR QRConfig `json:"qr" mapstructure:"qr"`

	// Seal output
	Seal SealConfig `json:"seal" mapstructure:"seal"`

	// Live scanning
	Scanner ScannerConfig `json:"scanner" mapstructure:"scanner"`

	// HTTP API
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Seal history
	State StateConfig `json:"state" mapstructure:"state"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// QRConfig controls how seals are rendered and located.
type QRConfig struct {
	ErrorCorrection string `json:"error_correction" mapstructure:"error_correction"` // L, M, Q, H
	BoxSize         int    `json:"box_size" mapstructure:"box_size"`                 // Pixels per module
	Border          int    `json:"border" mapstructure:"border"`                     // Quiet zone in modules
	PadWidth        int    `json:"pad_width" mapstructure:"pad_width"`               // Synthetic quiet zone in pixels
	Threshold       int    `json:"threshold" mapstructure:"threshold"`               // Binarization cut-off, 0-255
	TryHarder       bool   `json:"try_harder" mapstructure:"try_harder"`
}

// SealConfig for seal files.
type SealConfig struct {
	OutputDir    string `json:"output_dir" mapstructure:"output_dir"`
	TempDir      string `json:"temp_dir" mapstructure:"temp_dir"`
	MaxImageSize int64  `json:"max_image_size" mapstructure:"max_image_size"` // Max upload in bytes

	// Speech-to-text program for audio messages; the audio path is appended.
	TranscribeCommand string `json:"transcribe_command" mapstructure:"transcribe_command"`
}

// ScannerConfig for the polling scanner.
type ScannerConfig struct {
	SourceDir    string        `json:"source_dir" mapstructure:"source_dir"`
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	Cooldown     time.Duration `json:"cooldown" mapstructure:"cooldown"`
	Consume      bool          `json:"consume" mapstructure:"consume"` // Delete frames once read
	SpeakCommand string        `json:"speak_command" mapstructure:"speak_command"`
}

// ServerConfig for the HTTP API.
type ServerConfig struct {
	Addr           string        `json:"addr" mapstructure:"addr"`
	ReadTimeout    time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	MaxConnections int           `json:"max_connections" mapstructure:"max_connections"`
	AllowedOrigins []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// StateConfig for the seal history store.
type StateConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // json, sqlite
	Path    string `json:"path" mapstructure:"path"`       // Directory holding the store
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stdout)
	Color  bool   `json:"color" mapstructure:"color"`   // Enable colored output
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".echoseal"

	return &Config{
		QR: QRConfig{
			ErrorCorrection: "L",
			BoxSize:         15,
			Border:          2,
			PadWidth:        50,
			Threshold:       200,
		},
		Seal: SealConfig{
			OutputDir:    "output",
			TempDir:      filepath.Join(dataDir, "temp"),
			MaxImageSize: 20 * 1024 * 1024, // 20MB
		},
		Scanner: ScannerConfig{
			SourceDir:    filepath.Join(dataDir, "frames"),
			PollInterval: 200 * time.Millisecond,
			Cooldown:     2 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 20 * time.Second,
			MaxConnections: 64,
			AllowedOrigins: []string{"*"},
		},
		State: StateConfig{
			Backend: "json",
			Path:    filepath.Join(dataDir, "history"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"L": true, "M": true, "Q": true, "H": true}
	if !validLevels[c.QR.ErrorCorrection] {
		return fmt.Errorf("invalid qr.error_correction: %s", c.QR.ErrorCorrection)
	}

	if c.QR.BoxSize <= 0 {
		return errors.New("qr.box_size must be positive")
	}

	if c.QR.Border < 0 {
		return errors.New("qr.border must not be negative")
	}

	if c.QR.PadWidth < 0 {
		return errors.New("qr.pad_width must not be negative")
	}

	if c.QR.Threshold < 0 || c.QR.Threshold > 255 {
		return fmt.Errorf("qr.threshold must be within 0-255, got %d", c.QR.Threshold)
	}

	if c.Seal.OutputDir == "" {
		return errors.New("seal.output_dir is required")
	}

	if c.Seal.MaxImageSize <= 0 {
		return errors.New("seal.max_image_size must be positive")
	}

	if c.Scanner.PollInterval <= 0 {
		return errors.New("scanner.poll_interval must be positive")
	}

	if c.Scanner.Cooldown < 0 {
		return errors.New("scanner.cooldown must not be negative")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	if c.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}

	validBackends := map[string]bool{"json": true, "sqlite": true}
	if !validBackends[c.State.Backend] {
		return fmt.Errorf("invalid state backend: %s", c.State.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Seal.OutputDir,
		c.Seal.TempDir,
		c.State.Path,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
