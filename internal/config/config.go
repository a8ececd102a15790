// Package config loads and validates the bridge's static configuration.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (PJRMI_*) (highest priority)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Command-line flags only choose which configuration file is read; no
// flag overrides an individual setting.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/deshaw/pjrmi-go/internal/bytesize"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a pjrmid process.
//
// It captures every section a session needs before it can accept a peer:
// logging, transport binding, worker pool sizing, the shared-memory fast
// path, the allow-list of exposable classes, TLS, metrics, and the
// optional process-wide lock.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and Pyroscope
	// continuous profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to complete.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server configures how peers connect: a bind address for a TCP
	// listener, or stdio/pipe mode for a process launched by its peer.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Workers configures the dispatch worker pool.
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// SharedMemory configures the mmap fast path for homogeneous numeric
	// arrays exchanged between co-located peers.
	SharedMemory SharedMemoryConfig `mapstructure:"shared_memory" yaml:"shared_memory"`

	// AllowList restricts which classes a peer may instantiate or call
	// into.
	AllowList AllowListConfig `mapstructure:"allow_list" yaml:"allow_list"`

	// TLS configures transport encryption for the TCP listener.
	TLS TLSConfig `mapstructure:"tls" yaml:"tls"`

	// Auth configures optional bearer-token authentication at handshake.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GlobalLock controls whether a single process-wide lock serializes
	// every call into S, mirroring a GIL-protected runtime.
	GlobalLock GlobalLockConfig `mapstructure:"global_lock" yaml:"global_lock"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file
	// path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection
	// to the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// ServerConfig configures how peers connect to this process.
type ServerConfig struct {
	// Transport selects the connection mode: "tcp", "stdio", or "pipe".
	Transport string `mapstructure:"transport" validate:"required,oneof=tcp stdio pipe" yaml:"transport"`

	// BindHost is the address a tcp transport listens on.
	BindHost string `mapstructure:"bind_host" yaml:"bind_host"`

	// BindPort is the port a tcp transport listens on. Zero means let
	// the OS pick an ephemeral port and report it back to the launching
	// peer over stdout, the way a subprocess-spawned server announces
	// its port.
	BindPort int `mapstructure:"bind_port" validate:"omitempty,min=0,max=65535" yaml:"bind_port"`

	// PipePath is accepted but not read by pjrmid: the "pipe" transport
	// is an in-process pair (transport.NewPipePair) with no listener,
	// and pjrmid refuses to start with it.
	PipePath string `mapstructure:"pipe_path" yaml:"pipe_path,omitempty"`

	// HandshakeTimeout bounds how long a newly accepted connection has
	// to complete HELLO/HELLO_ACK before it is dropped.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"required,gt=0" yaml:"handshake_timeout"`

	// IdleTimeout sets the heartbeat cadence: pjrmid sends a PING every
	// IdleTimeout/3. A session is not closed for being idle.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// WorkersConfig configures the dispatch worker pool.
type WorkersConfig struct {
	// MinWorkers is the pool's floor: workers kept alive even when idle.
	MinWorkers int `mapstructure:"min_workers" validate:"required,gt=0" yaml:"min_workers"`

	// MaxWorkers caps the pool's growth under nested reentrant calls.
	// Zero means unbounded.
	MaxWorkers int `mapstructure:"max_workers" validate:"omitempty,gtefield=MinWorkers" yaml:"max_workers"`
}

// SharedMemoryConfig configures the mmap fast path for homogeneous
// numeric arrays.
type SharedMemoryConfig struct {
	// Enabled turns on the shared-memory channel for co-located peers.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Directory is where SHMARRY-backed files are created.
	Directory string `mapstructure:"directory" yaml:"directory"`

	// Threshold is the minimum array byte size that takes the
	// shared-memory path instead of being inlined in a frame.
	// Supports human-readable sizes like "64Ki".
	Threshold bytesize.ByteSize `mapstructure:"threshold" yaml:"threshold,omitempty"`
}

// AllowListConfig restricts which classes a peer may instantiate or
// call into.
type AllowListConfig struct {
	// Enabled activates allow-list enforcement. When false, any
	// resolvable class is reachable, matching an unrestricted PJRmi
	// deployment.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is a newline-delimited file of fully qualified class names
	// a peer may instantiate or call a static method on.
	Path string `mapstructure:"path" validate:"required_if=Enabled true" yaml:"path,omitempty"`
}

// TLSConfig configures transport encryption for the TCP listener.
type TLSConfig struct {
	// Enabled turns on TLS for the tcp transport.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// CertPath is the server certificate path.
	CertPath string `mapstructure:"cert_path" validate:"required_if=Enabled true" yaml:"cert_path,omitempty"`

	// KeyPath is the server private key path.
	KeyPath string `mapstructure:"key_path" validate:"required_if=Enabled true" yaml:"key_path,omitempty"`

	// ClientCAPath, when set, requires and verifies a peer certificate
	// signed by this CA, and the verified identity becomes the
	// session's PeerUser.
	ClientCAPath string `mapstructure:"client_ca_path" yaml:"client_ca_path,omitempty"`
}

// AuthConfig configures optional bearer-token authentication at
// handshake.
type AuthConfig struct {
	// Enabled activates JWT bearer-token verification of the HELLO
	// frame's peer identity. When false, handshake authorizes on
	// version/capability exchange alone (or on TLS client-certificate
	// identity, if TLS.ClientCAPath is set).
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// JWTSecretPath is a file holding the HMAC signing secret used to
	// verify a peer's bearer token.
	JWTSecretPath string `mapstructure:"jwt_secret_path" validate:"required_if=Enabled true" yaml:"jwt_secret_path,omitempty"`

	// JWTAudience, if set, is required to appear in the token's "aud"
	// claim.
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience,omitempty"`

	// JWTIssuer, if set, is required to match the token's "iss" claim.
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server. When
// Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server
	// are enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// GlobalLockConfig controls the optional process-wide serialization
// lock.
type GlobalLockConfig struct {
	// Enabled serializes every call into S behind a single named lock,
	// acquired and released around dispatch the way a GIL-protected
	// runtime would require.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Name is the lock manager entry used for the global lock.
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, producing an actionable error pointing at
// `pjrmid init` when no config file is found.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n"+
				"  pjrmid init\n\n"+
				"Or specify a custom config file:\n"+
				"  pjrmid start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Create it with:\n"+
			"  pjrmid init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	return nil
}

// SaveConfig writes cfg to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper's environment and file-search behavior.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PJRMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists. The bool
// return reports whether a file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks for custom
// scalar types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/pjrmi,
// falling back to ~/.config/pjrmi, or "." if the home directory cannot be
// determined.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pjrmi")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "pjrmi")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the configuration directory for the init
// subcommand.
func GetConfigDir() string {
	return getConfigDir()
}
