package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/p1ctl/internal/config"
	"github.com/danmuck/p1ctl/internal/meter"
)

const defaultHTTPAddr = ":9200"

type runtimeConfig struct {
	Service     meter.ServiceConfig
	HTTPAddr    string
	CorsOrigins []string
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		Service:     meter.DefaultServiceConfig(),
		HTTPAddr:    defaultHTTPAddr,
		CorsOrigins: []string{},
	}
}

// loadRuntimeConfig overlays keys present in path onto the defaults.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	cfg := defaultRuntimeConfig()

	var raw config.ReaderFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runtimeConfig{}, fmt.Errorf("load p1ctl config: %w", err)
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Service.Name = name
		}
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("heartbeat") {
		d, err := parseDuration("heartbeat", raw.Heartbeat)
		if err != nil {
			return runtimeConfig{}, err
		}
		cfg.Service.HeartbeatInterval = d
	}
	if meta.IsDefined("buffer_size") {
		cfg.Service.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("max_reconnects") {
		cfg.Service.MaxReconnects = raw.MaxReconnects
	}
	if meta.IsDefined("keep_invalid") {
		cfg.Service.KeepInvalid = raw.KeepInvalid
	}

	tr := &cfg.Service.Transport
	if meta.IsDefined("transport", "kind") {
		tr.Kind = strings.ToLower(strings.TrimSpace(raw.Transport.Kind))
	}
	if meta.IsDefined("transport", "device") {
		tr.Device = strings.TrimSpace(raw.Transport.Device)
	}
	if meta.IsDefined("transport", "baud") {
		tr.Baud = raw.Transport.Baud
	}
	if meta.IsDefined("transport", "data_bits") {
		tr.DataBits = raw.Transport.DataBits
	}
	if meta.IsDefined("transport", "parity") {
		tr.Parity = strings.TrimSpace(raw.Transport.Parity)
	}
	if meta.IsDefined("transport", "stop_bits") {
		tr.StopBits = raw.Transport.StopBits
	}
	if meta.IsDefined("transport", "address") {
		tr.Address = strings.TrimSpace(raw.Transport.Address)
	}
	if meta.IsDefined("transport", "path") {
		tr.Path = strings.TrimSpace(raw.Transport.Path)
	}
	if meta.IsDefined("transport", "dial_timeout") {
		d, err := parseDuration("transport.dial_timeout", raw.Transport.DialTimeout)
		if err != nil {
			return runtimeConfig{}, err
		}
		tr.DialTimeout = d
	}

	bo := &cfg.Service.Backoff
	if meta.IsDefined("backoff", "initial") {
		d, err := parseDuration("backoff.initial", raw.Backoff.Initial)
		if err != nil {
			return runtimeConfig{}, err
		}
		bo.InitialDelay = d
	}
	if meta.IsDefined("backoff", "multiplier") {
		bo.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "max") {
		d, err := parseDuration("backoff.max", raw.Backoff.Max)
		if err != nil {
			return runtimeConfig{}, err
		}
		bo.MaxDelay = d
	}
	if meta.IsDefined("backoff", "jitter") {
		bo.Jitter = raw.Backoff.Jitter
	}

	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
