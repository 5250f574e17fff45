// Package config loads a run descriptor: everything SourceClient needs
// to replay a trace, sourced from a YAML file or built directly from
// CLI flags for quick one-off runs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/faastrace/loadgen/pkg/iat"
	"github.com/faastrace/loadgen/pkg/workload"
)

// Config is the top-level run descriptor.
type Config struct {
	CSVPath string `yaml:"csv"`

	MinuteRange string `yaml:"minutes"` // "A:B" or "A..B"; empty means default
	IATKind     string `yaml:"distribution"`

	Seed         uint64 `yaml:"seed"` // 0 selects the fixed sentinel
	RandomSeed   bool   `yaml:"random_seed"`
	InvocIDStart uint64 `yaml:"invoc_id_start"`

	MinioAddress string `yaml:"minio_address"`
	BucketName   string `yaml:"minio_bucket"`

	BackendKind string `yaml:"backend"` // "http", "log", "noop"
	BackendURL  string `yaml:"backend_url"`

	RequestLogPath    string `yaml:"requests_out"`
	InvocationLogPath string `yaml:"invocations_out"`
	SinkOutPath       string `yaml:"outfile"`

	MetricsAddr string `yaml:"metrics_addr"` // empty disables the metrics server
}

const (
	defaultMinioAddress = "localhost:59000"
	defaultBucketName   = "snaplace-fbpml"
)

// Load reads path as YAML and fills in defaults for anything the file
// left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save marshals cfg to path as YAML, for --write-config debugging.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults fills in the documented defaults for anything left
// unset. Load calls it after parsing; a Config built directly from CLI
// flags must have it applied too, or an unset MinIO endpoint ends up
// rewriting payloads with empty strings.
func (cfg *Config) ApplyDefaults() {
	if cfg.MinioAddress == "" {
		cfg.MinioAddress = defaultMinioAddress
	}
	if cfg.BucketName == "" {
		cfg.BucketName = defaultBucketName
	}
	if cfg.BackendKind == "" {
		cfg.BackendKind = "noop"
	}
}

// ResolveMinuteRange parses MinuteRange, or returns the default full
// range if it was left unset.
func (cfg *Config) ResolveMinuteRange() (workload.MinuteRange, error) {
	if cfg.MinuteRange == "" {
		return workload.DefaultMinuteRange(), nil
	}
	return workload.ParseMinuteRange(cfg.MinuteRange)
}

// ResolveIATKind parses IATKind, defaulting to Poisson.
func (cfg *Config) ResolveIATKind() (iat.Kind, error) {
	return iat.ParseKind(cfg.IATKind)
}
