// Package config provides configuration loading and validation for warlens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/joshsymonds/warlens/internal/analysis"
	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/joshsymonds/warlens/internal/enrichment/llm"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/pkg/pathutil"
)

// Defaults.
const (
	DefaultInputDir           = "input"
	DefaultOutputDir          = "output"
	DefaultSummaryDir         = "summary"
	DefaultCacheFile          = "ollama_suggestion_cache.json"
	DefaultReportFileName     = "summary-analyze.json"
	DefaultPattern            = "*.csv"
	DefaultEndpoint           = "http://host.docker.internal:11434/api"
	DefaultModel              = "llama3.1:8b"
	DefaultTimeout            = 5 * time.Minute
	DefaultMaxRetries         = 2
	DefaultCheckpointInterval = 10
	DefaultTimezone           = "America/Los_Angeles"
)

// OllamaHostEnv overrides the enrichment endpoint when set.
const OllamaHostEnv = "OLLAMA_HOST"

// Config represents the complete warlens configuration.
type Config struct {
	Paths              PathsConfig        `yaml:"paths"`
	Input              InputConfig        `yaml:"input"`
	Enrichment         enrichment.Config  `yaml:"enrichment"`
	Summary            SummaryConfig      `yaml:"summary"`
	Sink               storage.SinkConfig `yaml:"sink"`
	CheckpointInterval int                `yaml:"checkpoint_interval"`
}

// PathsConfig locates every file and folder the tool reads or writes.
type PathsConfig struct {
	InputDir   string `yaml:"input_dir"`
	OutputDir  string `yaml:"output_dir"`
	SummaryDir string `yaml:"summary_dir"`
	CacheFile  string `yaml:"cache_file"`
	ReportFile string `yaml:"report_file"`
	// Database is an optional SQLite path; empty disables the SQL projection.
	Database string `yaml:"database,omitempty"`
}

// InputConfig describes the assessment exports.
type InputConfig struct {
	Pattern    string `yaml:"pattern"`
	HeaderSkip int    `yaml:"header_skip"`
}

// SummaryConfig controls per-file summaries and the combined report.
type SummaryConfig struct {
	Timezone         string `yaml:"timezone"`
	SeverityConflict string `yaml:"severity_conflict"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:   DefaultInputDir,
			OutputDir:  DefaultOutputDir,
			SummaryDir: DefaultSummaryDir,
			CacheFile:  DefaultCacheFile,
		},
		Input: InputConfig{Pattern: DefaultPattern},
		Enrichment: enrichment.Config{
			Driver:     llm.DriverOllama,
			Endpoint:   DefaultEndpoint,
			Model:      DefaultModel,
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Summary: SummaryConfig{
			Timezone:         DefaultTimezone,
			SeverityConflict: string(analysis.DefaultPolicy),
		},
		Sink:               storage.SinkConfig{Type: storage.SinkLocal},
		CheckpointInterval: DefaultCheckpointInterval,
	}
}

// LoadConfig reads a YAML configuration file over the defaults. An empty
// path returns the defaults. Environment overrides are applied and the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		configPath, err := pathutil.ValidateConfigPath(path)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		data, err := os.ReadFile(configPath) //nolint:gosec // Path is from trusted source (config file)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Resolve applies environment overrides, reads secrets from the
// environment and expands "~" in paths.
func (c *Config) Resolve() error {
	if host := strings.TrimSpace(os.Getenv(OllamaHostEnv)); host != "" {
		c.Enrichment.Endpoint = host
	}
	if c.Enrichment.APIKeyEnv != "" {
		c.Enrichment.APIKey = os.Getenv(c.Enrichment.APIKeyEnv)
	}
	c.Sink.ResolveCredentials()

	for _, p := range []*string{
		&c.Paths.InputDir, &c.Paths.OutputDir, &c.Paths.SummaryDir,
		&c.Paths.CacheFile, &c.Paths.ReportFile, &c.Paths.Database,
	} {
		expanded, err := pathutil.ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	if c.Paths.InputDir == "" {
		return fmt.Errorf("paths.input_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}
	if c.Paths.SummaryDir == "" {
		return fmt.Errorf("paths.summary_dir is required")
	}
	if c.Paths.CacheFile == "" {
		return fmt.Errorf("paths.cache_file is required")
	}

	if c.Input.HeaderSkip < 0 {
		return fmt.Errorf("input.header_skip must not be negative")
	}
	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("invalid input.pattern %q: %w", c.Input.Pattern, err)
	}

	if c.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint_interval must be at least 1, got %d", c.CheckpointInterval)
	}

	if err := c.validateEnrichment(); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Summary.Timezone); err != nil {
		return fmt.Errorf("invalid summary.timezone %q: %w", c.Summary.Timezone, err)
	}
	if _, err := analysis.ParsePolicy(c.Summary.SeverityConflict); err != nil {
		return fmt.Errorf("summary.severity_conflict: %w", err)
	}

	return c.Sink.Validate()
}

func (c *Config) validateEnrichment() error {
	e := c.Enrichment
	known := llm.DefaultRegistry.Names()
	found := false
	for _, name := range known {
		if name == e.Driver {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown enrichment.driver %q (available: %s)", e.Driver, strings.Join(known, ", "))
	}
	if e.Endpoint == "" {
		return fmt.Errorf("enrichment.endpoint is required")
	}
	if e.Model == "" {
		return fmt.Errorf("enrichment.model is required")
	}
	if e.Timeout < 0 {
		return fmt.Errorf("enrichment.timeout must not be negative")
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("enrichment.max_retries must not be negative")
	}
	return nil
}

// ReportPath returns the combined report location.
func (c *Config) ReportPath() string {
	if c.Paths.ReportFile != "" {
		return c.Paths.ReportFile
	}
	return filepath.Join(c.Paths.SummaryDir, DefaultReportFileName)
}

// Location returns the timezone used for summary timestamps.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Summary.Timezone)
}

// Policy returns the parsed severity conflict policy.
func (c *Config) Policy() (analysis.Policy, error) {
	return analysis.ParsePolicy(c.Summary.SeverityConflict)
}
