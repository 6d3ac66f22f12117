package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"redcell/internal/guardrail"
)

type ServerConfig struct {
	ListenAddr string              `json:"listen_addr" yaml:"listen_addr"`
	Database   DatabaseConfig      `json:"database" yaml:"database"`
	Auth       AuthConfig          `json:"auth" yaml:"auth"`
	Security   SecurityConfig      `json:"security" yaml:"security"`
	Runner     RunnerConfig        `json:"runner" yaml:"runner"`
	Capacity   CapacityConfig      `json:"capacity" yaml:"capacity"`
	Guardrail  guardrail.Config    `json:"guardrail" yaml:"guardrail"`
	Observer   ObservabilityConfig `json:"observability" yaml:"observability"`
}

type DatabaseConfig struct {
	DSN            string `json:"dsn" yaml:"dsn"`
	MaxConns       int32  `json:"max_conns" yaml:"max_conns"`
	MigrationsPath string `json:"migrations_path" yaml:"migrations_path"`
	// StatePath backs the file-based store used when no DSN is configured.
	StatePath string `json:"state_path" yaml:"state_path"`
}

type AuthConfig struct {
	SessionTTL string `json:"session_ttl" yaml:"session_ttl"`
	CookieName string `json:"cookie_name" yaml:"cookie_name"`
}

type SecurityConfig struct {
	AdminToken string `json:"admin_token" yaml:"admin_token"`
}

type RunnerConfig struct {
	MaxParallelRuns   int `json:"max_parallel_runs" yaml:"max_parallel_runs"`
	DefaultTimeoutSec int `json:"default_timeout_sec" yaml:"default_timeout_sec"`
	QuickScanRPM      int `json:"quick_scan_rpm" yaml:"quick_scan_rpm"`
	QuickScanTests    int `json:"quick_scan_tests" yaml:"quick_scan_tests"`
}

// CapacityConfig bounds how hard the service may drive any single target.
type CapacityConfig struct {
	MaxRunsPerTarget  int `json:"max_runs_per_target" yaml:"max_runs_per_target"`
	InvocationsPerMin int `json:"invocations_per_min" yaml:"invocations_per_min"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
		Database: DatabaseConfig{
			MaxConns:       10,
			MigrationsPath: "./migrations",
		},
		Auth: AuthConfig{
			SessionTTL: "8h",
			CookieName: "redcell_session",
		},
		Runner: RunnerConfig{
			MaxParallelRuns:   2,
			DefaultTimeoutSec: 540,
			QuickScanRPM:      6,
			QuickScanTests:    3,
		},
		Capacity: CapacityConfig{
			MaxRunsPerTarget:  2,
			InvocationsPerMin: 300,
		},
		Guardrail: guardrail.Config{
			RedactPII: true,
		},
		Observer: ObservabilityConfig{
			ServiceName: "redcell-api",
			SampleRatio: 1,
		},
	}
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *ServerConfig) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if strings.TrimSpace(cfg.Database.MigrationsPath) == "" {
		cfg.Database.MigrationsPath = "./migrations"
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		cfg.Auth.CookieName = "redcell_session"
	}
	if strings.TrimSpace(cfg.Auth.SessionTTL) == "" {
		cfg.Auth.SessionTTL = "8h"
	}
	if cfg.Runner.MaxParallelRuns <= 0 {
		cfg.Runner.MaxParallelRuns = 2
	}
	if cfg.Runner.DefaultTimeoutSec <= 0 {
		cfg.Runner.DefaultTimeoutSec = 540
	}
	if cfg.Runner.QuickScanRPM <= 0 {
		cfg.Runner.QuickScanRPM = 6
	}
	if cfg.Runner.QuickScanTests <= 0 {
		cfg.Runner.QuickScanTests = 3
	}
	if cfg.Capacity.MaxRunsPerTarget <= 0 {
		cfg.Capacity.MaxRunsPerTarget = 2
	}
	if cfg.Capacity.InvocationsPerMin <= 0 {
		cfg.Capacity.InvocationsPerMin = 300
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "redcell-api"
	}
}
