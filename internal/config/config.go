// Package config owns the p1ctl file schema, strict validation and templates.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ReaderFile is the on-disk p1ctl configuration. Durations are Go duration strings.
type ReaderFile struct {
	Name          string           `toml:"name"`
	HTTPAddr      string           `toml:"http_addr"`
	CorsOrigins   []string         `toml:"cors_origins"`
	Heartbeat     string           `toml:"heartbeat"`
	BufferSize    int              `toml:"buffer_size"`
	MaxReconnects int              `toml:"max_reconnects"`
	KeepInvalid   bool             `toml:"keep_invalid"`
	Transport     TransportSection `toml:"transport"`
	Backoff       BackoffSection   `toml:"backoff"`
}

type TransportSection struct {
	Kind        string `toml:"kind"`
	Device      string `toml:"device"`
	Baud        int    `toml:"baud"`
	DataBits    int    `toml:"data_bits"`
	Parity      string `toml:"parity"`
	StopBits    int    `toml:"stop_bits"`
	Address     string `toml:"address"`
	Path        string `toml:"path"`
	DialTimeout string `toml:"dial_timeout"`
}

type BackoffSection struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

// LoadReaderConfig decodes path strictly: unknown keys are errors.
func LoadReaderConfig(path string) (ReaderFile, error) {
	var cfg ReaderFile
	if err := loadToml(path, &cfg); err != nil {
		return ReaderFile{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "p1ctl"
	}
	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = "serial"
	}
	if err := ValidateReaderConfig(cfg); err != nil {
		return ReaderFile{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateReaderConfig(cfg ReaderFile) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("reader config missing name")
	}
	if cfg.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative")
	}
	if cfg.MaxReconnects < 0 {
		return fmt.Errorf("max_reconnects must not be negative")
	}
	if err := validateDuration("heartbeat", cfg.Heartbeat, true); err != nil {
		return err
	}
	if err := ValidateTransport(cfg.Transport); err != nil {
		return fmt.Errorf("transport invalid: %w", err)
	}
	if err := validateDuration("backoff.initial", cfg.Backoff.Initial, false); err != nil {
		return err
	}
	if err := validateDuration("backoff.max", cfg.Backoff.Max, false); err != nil {
		return err
	}
	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be >= 1")
	}
	return nil
}

func ValidateTransport(cfg TransportSection) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "serial":
		if strings.TrimSpace(cfg.Device) == "" {
			return fmt.Errorf("device is required")
		}
		if cfg.Baud < 0 {
			return fmt.Errorf("baud must not be negative")
		}
	case "tcp":
		if strings.TrimSpace(cfg.Address) == "" {
			return fmt.Errorf("address is required")
		}
	case "file":
		if strings.TrimSpace(cfg.Path) == "" {
			return fmt.Errorf("path is required")
		}
	default:
		return fmt.Errorf("unknown kind: %q", cfg.Kind)
	}
	return validateDuration("dial_timeout", cfg.DialTimeout, false)
}

func validateDuration(key, raw string, positive bool) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 || (positive && d == 0) {
		return fmt.Errorf("%s: invalid duration %s", key, raw)
	}
	return nil
}
