package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is written by `pjrmid init`. It is valid YAML on
// its own, with every section set to an explicit value, so a user can
// edit it in place.
const sampleConfigTemplate = `# PJRmi Configuration File
#
# Generated by 'pjrmid init'. Values shown are the built-in defaults,
# except telemetry.insecure, which defaults to false; edit any section
# you need to change.

logging:
  level: INFO
  format: text
  output: stdout

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

shutdown_timeout: 30s

server:
  transport: tcp
  bind_host: 127.0.0.1
  bind_port: 0
  handshake_timeout: 10s
  idle_timeout: 5m

workers:
  min_workers: 4
  max_workers: 0

shared_memory:
  enabled: false
  directory: /dev/shm/pjrmi
  threshold: 64Ki

allow_list:
  enabled: false
  path: ""

tls:
  enabled: false

auth:
  enabled: false

metrics:
  enabled: false
  port: 9090

global_lock:
  enabled: false
  name: pjrmi.global
`

// InitConfig writes the sample configuration to the default location
// (or overwrites it if force is true) and returns the path written.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()

	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := GetConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfigTemplate), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}

// InitConfigToPath writes the sample configuration to path (or
// overwrites it if force is true), creating its parent directory if
// needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
