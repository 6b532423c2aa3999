// Package common provides shared configuration and process-wide utilities.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string             `toml:"environment"` // "development" or "production"
	Server      ServerConfig       `toml:"server"`
	Logging     LoggingConfig      `toml:"logging"`
	Nodes       NodesConfig        `toml:"nodes"`
	Health      HealthConfig       `toml:"health"`
	Worker      WorkerClientConfig `toml:"worker"`
	Router      RouterConfig       `toml:"router"`
	Template    TemplateConfig     `toml:"template"`
	Aggregator  AggregatorConfig   `toml:"aggregator"`
	Preference  PreferenceConfig   `toml:"preference"`
	Rewriter    RewriterConfig     `toml:"rewriter"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default: "15:04:05.000"
}

// NodesConfig points at the declarative worker inventory.
type NodesConfig struct {
	ConfigFile string `toml:"config_file"` // TOML file listing node definitions
}

// HealthConfig controls the Health Prober.
type HealthConfig struct {
	Interval     time.Duration `toml:"interval"`      // default 10s
	ProbeTimeout time.Duration `toml:"probe_timeout"` // default 3s
}

// WorkerClientConfig controls timeouts and reconnection for the Worker Client.
type WorkerClientConfig struct {
	SubmitTimeout     time.Duration `toml:"submit_timeout"`      // default 30s
	PollInterval      time.Duration `toml:"poll_interval"`       // default 1s
	PollTimeout       time.Duration `toml:"poll_timeout"`        // per-poll HTTP timeout, default 5s
	JobDeadline       time.Duration `toml:"job_deadline"`        // default 300s
	ArtifactTimeout   time.Duration `toml:"artifact_timeout"`    // default 60s
	ReconnectMinDelay time.Duration `toml:"reconnect_min_delay"` // default 1s
	ReconnectMaxDelay time.Duration `toml:"reconnect_max_delay"` // default 30s
	KeepaliveInterval time.Duration `toml:"keepalive_interval"`  // default 30s
}

// RouterConfig controls the Task Router's overflow policy.
type RouterConfig struct {
	OverflowQueueThreshold int `toml:"overflow_queue_threshold"` // default 3
}

// TemplateConfig points at the job-graph template manifest.
type TemplateConfig struct {
	ManifestDir string `toml:"manifest_dir"` // directory of template TOML files
}

// AggregatorConfig controls per-session subscriber backpressure.
type AggregatorConfig struct {
	SubscriberBufferSize int           `toml:"subscriber_buffer_size"` // default 64
	DropWarnLogInterval  time.Duration `toml:"drop_warn_log_interval"` // rate limit for drop warnings, default 5s
}

// PreferenceConfig controls the Preference Engine.
type PreferenceConfig struct {
	Smoothing  float64 `toml:"smoothing"`   // default 10
	ExportPath string  `toml:"export_path"` // optional path imported at startup and exported to on shutdown
}

// RewriterConfig selects the external prompt-rewriter implementation.
type RewriterConfig struct {
	Provider string `toml:"provider"` // "noop" (default) or "genai"
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Nodes: NodesConfig{
			ConfigFile: "./nodes.toml",
		},
		Health: HealthConfig{
			Interval:     10 * time.Second,
			ProbeTimeout: 3 * time.Second,
		},
		Worker: WorkerClientConfig{
			SubmitTimeout:     30 * time.Second,
			PollInterval:      1 * time.Second,
			PollTimeout:       5 * time.Second,
			JobDeadline:       300 * time.Second,
			ArtifactTimeout:   60 * time.Second,
			ReconnectMinDelay: 1 * time.Second,
			ReconnectMaxDelay: 30 * time.Second,
			KeepaliveInterval: 30 * time.Second,
		},
		Router: RouterConfig{
			OverflowQueueThreshold: 3,
		},
		Template: TemplateConfig{
			ManifestDir: "./templates",
		},
		Aggregator: AggregatorConfig{
			SubscriberBufferSize: 64,
			DropWarnLogInterval:  5 * time.Second,
		},
		Preference: PreferenceConfig{
			Smoothing:  10,
			ExportPath: "./data/preferences.json",
		},
		Rewriter: RewriterConfig{
			Provider: "noop",
		},
	}
}

// LoadFromFile loads configuration from a single file, falling back to defaults when path is empty.
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads and merges configuration from one or more TOML files, later files
// overriding earlier ones, then applies environment variable overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies ORCHESTRATOR_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ORCHESTRATOR_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("ORCHESTRATOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("ORCHESTRATOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("ORCHESTRATOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("ORCHESTRATOR_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if nodesFile := os.Getenv("ORCHESTRATOR_NODES_CONFIG_FILE"); nodesFile != "" {
		config.Nodes.ConfigFile = nodesFile
	}

	if interval := os.Getenv("ORCHESTRATOR_HEALTH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Health.Interval = d
		}
	}

	if threshold := os.Getenv("ORCHESTRATOR_ROUTER_OVERFLOW_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			config.Router.OverflowQueueThreshold = t
		}
	}

	if apiKey := os.Getenv("ORCHESTRATOR_REWRITER_API_KEY"); apiKey != "" {
		config.Rewriter.APIKey = apiKey
	}
	if provider := os.Getenv("ORCHESTRATOR_REWRITER_PROVIDER"); provider != "" {
		config.Rewriter.Provider = provider
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config. Flags take highest priority.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// DeepCloneConfig creates a deep copy of the Config struct to prevent shared mutation.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}

	clone := *c

	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}

	return &clone
}
