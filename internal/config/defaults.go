package config

import (
	"strings"
	"time"

	"github.com/deshaw/pjrmi-go/internal/bytesize"
)

// ApplyDefaults fills in zero-valued fields after loading from file and
// environment. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyWorkersDefaults(&cfg.Workers)
	applySharedMemoryDefaults(&cfg.SharedMemory)
	applyMetricsDefaults(&cfg.Metrics)
	applyGlobalLockDefaults(&cfg.GlobalLock)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.BindHost == "" {
		cfg.BindHost = "127.0.0.1"
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
}

func applyWorkersDefaults(cfg *WorkersConfig) {
	if cfg.MinWorkers == 0 {
		cfg.MinWorkers = 4
	}
}

func applySharedMemoryDefaults(cfg *SharedMemoryConfig) {
	if cfg.Directory == "" {
		cfg.Directory = "/dev/shm/pjrmi"
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 64 * bytesize.KiB
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyGlobalLockDefaults(cfg *GlobalLockConfig) {
	if cfg.Name == "" {
		cfg.Name = "pjrmi.global"
	}
}

// GetDefaultConfig returns a fully defaulted Config, the one used when no
// config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
