package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ECHOSEAL_LOG_LEVEL.
const EnvPrefix = "ECHOSEAL"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty path searches the default
// locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Load reads configuration from defaults, file and environment, in that order.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		v.SetConfigName("echoseal")
		for _, dir := range l.defaultPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.QR.ErrorCorrection = strings.ToUpper(cfg.QR.ErrorCorrection)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// defaultPaths returns default config file locations.
func (l *Loader) defaultPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "echoseal"),
			filepath.Join(homeDir, ".echoseal"),
		)
	}

	return paths
}

// setDefaults registers every key so that environment overrides reach
// Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("qr.error_correction", cfg.QR.ErrorCorrection)
	v.SetDefault("qr.box_size", cfg.QR.BoxSize)
	v.SetDefault("qr.border", cfg.QR.Border)
	v.SetDefault("qr.pad_width", cfg.QR.PadWidth)
	v.SetDefault("qr.threshold", cfg.QR.Threshold)
	v.SetDefault("qr.try_harder", cfg.QR.TryHarder)

	v.SetDefault("seal.output_dir", cfg.Seal.OutputDir)
	v.SetDefault("seal.temp_dir", cfg.Seal.TempDir)
	v.SetDefault("seal.max_image_size", cfg.Seal.MaxImageSize)
	v.SetDefault("seal.transcribe_command", cfg.Seal.TranscribeCommand)

	v.SetDefault("scanner.source_dir", cfg.Scanner.SourceDir)
	v.SetDefault("scanner.poll_interval", cfg.Scanner.PollInterval)
	v.SetDefault("scanner.cooldown", cfg.Scanner.Cooldown)
	v.SetDefault("scanner.consume", cfg.Scanner.Consume)
	v.SetDefault("scanner.speak_command", cfg.Scanner.SpeakCommand)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.request_timeout", cfg.Server.RequestTimeout)
	v.SetDefault("server.max_connections", cfg.Server.MaxConnections)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)

	v.SetDefault("state.backend", cfg.State.Backend)
	v.SetDefault("state.path", cfg.State.Path)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.color", cfg.Log.Color)
}

// SaveExample writes an example config file.
func SaveExample(path string) error {
	cfg := DefaultConfig()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}
