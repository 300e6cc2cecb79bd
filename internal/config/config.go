// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package config loads and validates the application configuration from
// layered sources: built-in defaults, an optional YAML file, and PATHWISE_*
// environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pathwise/config.yaml",
	"/etc/pathwise/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "PATHWISE_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// config paths: PATHWISE_SERVER_PORT -> server.port.
const envPrefix = "PATHWISE_"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	Engine    EngineConfig    `koanf:"engine"`
	Recommend RecommendConfig `koanf:"recommend"`
	Recompute RecomputeConfig `koanf:"recompute"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`

	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file path.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses all CPUs.
	Threads int `koanf:"threads"`
}

// SnapshotConfig configures the Badger snapshot store.
type SnapshotConfig struct {
	// Path is the Badger data directory.
	Path string `koanf:"path"`

	// FreshnessWindow is the age past which a served snapshot is reported
	// stale.
	FreshnessWindow time.Duration `koanf:"freshness_window"`

	// GCInterval is how often Badger value-log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// EngineConfig configures the gap analysis pipeline.
type EngineConfig struct {
	MinRelevance    float64       `koanf:"min_relevance"`
	HalfLife        time.Duration `koanf:"half_life"`
	ConfidenceK     float64       `koanf:"confidence_k"`
	ConfidenceFloor float64       `koanf:"confidence_floor"`
	TopN            int           `koanf:"top_n"`
	MaxEvidenceRefs int           `koanf:"max_evidence_refs"`

	// GraphPath points at the concept graph YAML/JSON snapshot.
	GraphPath string `koanf:"graph_path"`

	// MappingPath points at the item-to-concept mapping table file.
	MappingPath string `koanf:"mapping_path"`
}

// RecommendConfig configures the recommendation pipeline.
type RecommendConfig struct {
	MaxPerGap        int     `koanf:"max_per_gap"`
	MinTypes         int     `koanf:"min_types"`
	StyleBoost       float64 `koanf:"style_boost"`
	TypeBoost        float64 `koanf:"type_boost"`
	IneffectiveBelow float64 `koanf:"ineffective_below"`
	CorrectiveWeight float64 `koanf:"corrective_weight"`

	// CatalogPath points at the resource catalog file.
	CatalogPath string `koanf:"catalog_path"`
}

// RecomputeConfig configures the background recomputation service.
type RecomputeConfig struct {
	// Workers is the number of parallel per-student pipelines.
	Workers int `koanf:"workers"`

	// QueueSize bounds the dirty-student queue.
	QueueSize int `koanf:"queue_size"`

	// Debounce coalesces recompute triggers per student.
	Debounce time.Duration `koanf:"debounce"`

	// RatePerSecond and Burst pace recompute dispatch.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
}

// IngestConfig configures the event ingestion pipeline.
type IngestConfig struct {
	// Topic is the in-process event topic name.
	Topic string `koanf:"topic"`

	// BufferSize is the publisher channel buffer.
	BufferSize int `koanf:"buffer_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before file and env
// layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			Timeout:         30 * time.Second,
			Environment:     "development",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/pathwise.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // use runtime.NumCPU()
		},
		Snapshot: SnapshotConfig{
			Path:            "/data/snapshots",
			FreshnessWindow: 5 * time.Minute,
			GCInterval:      10 * time.Minute,
		},
		Engine: EngineConfig{
			MinRelevance:    0.1,
			HalfLife:        30 * 24 * time.Hour,
			ConfidenceK:     8.0,
			ConfidenceFloor: 0.3,
			TopN:            5,
			MaxEvidenceRefs: 20,
			GraphPath:       "/data/concepts.yaml",
			MappingPath:     "/data/mappings.yaml",
		},
		Recommend: RecommendConfig{
			MaxPerGap:        3,
			MinTypes:         2,
			StyleBoost:       1.2,
			TypeBoost:        1.15,
			IneffectiveBelow: 0.3,
			CorrectiveWeight: 0.5,
			CatalogPath:      "/data/catalog.yaml",
		},
		Recompute: RecomputeConfig{
			Workers:       4,
			QueueSize:     1024,
			Debounce:      2 * time.Second,
			RatePerSecond: 50,
			Burst:         10,
		},
		Ingest: IngestConfig{
			Topic:      "performance.events",
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// PATHWISE_* environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps PATHWISE_SERVER_PORT to server.port. Only the first
// underscore separates the section; the rest stays joined so field names
// with underscores survive (SERVER_RATE_LIMIT_REQS -> server.rate_limit_reqs).
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// supplied through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
