// Package config loads the server's YAML configuration file on top of
// DefaultConfig.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to start a server.
type Config struct {
	// Listen is the TCP address to accept client connections on.
	Listen string `yaml:"listen"`

	// RingBufferCapacity is the requested size, in bytes, of each
	// connection's read and write ring buffers. Rounded up to the next
	// power of two.
	RingBufferCapacity uint64 `yaml:"ring_buffer_capacity"`

	// Password, if set, is required via AUTH before any other command.
	Password string `yaml:"password"`

	// MaxInlineBytes bounds how long an inline (non-multibulk) command
	// line may be before the connection is dropped as abusive.
	MaxInlineBytes int `yaml:"max_inline_bytes"`

	// ReplyHighWaterBytes is the reply-buffer size past which a
	// connection lagging behind its peer is considered unhealthy and
	// closed.
	ReplyHighWaterBytes uint64 `yaml:"reply_high_water_bytes"`

	// SlowLogThresholdMicros is the minimum command execution time, in
	// microseconds, recorded by the slow log.
	SlowLogThresholdMicros int64 `yaml:"slow_log_threshold_micros"`
}

// DefaultConfig returns the configuration a server starts with absent an
// override file.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 "127.0.0.1:6380",
		RingBufferCapacity:     64 * 1024,
		MaxInlineBytes:         64 * 1024,
		ReplyHighWaterBytes:    16 * 1024 * 1024,
		SlowLogThresholdMicros: 10_000,
	}
}

// Load reads and parses a YAML configuration file at path, starting from
// DefaultConfig so an override file only needs to mention what it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML configuration: %w", err)
	}
	return cfg, nil
}
