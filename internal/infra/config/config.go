package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SANDBOXTERM_"

// KeyEnv names the passphrase used to decrypt "enc:" values.
const KeyEnv = EnvPrefix + "CONFIG_KEY"

// Config is the root configuration for sandboxterm.
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	UI        UIConfig        `yaml:"ui"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// BackendConfig holds provisioning API settings.
type BackendConfig struct {
	BaseURL        string               `yaml:"base_url"`
	CreatePath     string               `yaml:"create_path"`
	StatusPath     string               `yaml:"status_path"` // "{id}" is replaced by the session id
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Pool           PoolConfig           `yaml:"pool"`
}

// CircuitBreakerConfig holds circuit breaker settings for status queries.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// AuthConfig selects the bearer token source. The first non-empty of
// token_file, token_env and token wins.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenEnv  string `yaml:"token_env"`
	TokenFile string `yaml:"token_file"`
}

// SessionConfig holds default create-session parameters.
type SessionConfig struct {
	WorkspaceID string `yaml:"workspace_id"`
	Template    string `yaml:"template"`
}

// ReadinessConfig tunes status polling.
type ReadinessConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Deadline       time.Duration `yaml:"deadline"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TerminalConfig tunes the terminal stream.
type TerminalConfig struct {
	Path                 string        `yaml:"path"`       // "{id}" is replaced by the session id
	StreamURL            string        `yaml:"stream_url"` // overrides the ws(s) base derived from backend.base_url
	TokenInQuery         bool          `yaml:"token_in_query"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // 0 = unlimited
	BufferLines          int           `yaml:"buffer_lines"`
	HistorySize          int           `yaml:"history_size"`
	ReadLimit            int64         `yaml:"read_limit"`
	PingInterval         time.Duration `yaml:"ping_interval"` // 0 disables keepalive pings
	Vocabulary           []string      `yaml:"vocabulary,omitempty"`
}

// UIConfig holds console front-end settings.
type UIConfig struct {
	Plain   bool   `yaml:"plain"`
	LogFile string `yaml:"log_file"` // log destination while the full-screen console runs
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultStateDir returns $HOME/.sandboxterm, falling back to the temp dir.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sandboxterm")
	}
	return filepath.Join(home, ".sandboxterm")
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	return filepath.Join(defaultStateDir(), "config.yaml")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8080",
			CreatePath:     "/api/container/create",
			StatusPath:     "/api/container/{id}/status",
			RequestTimeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			Pool: PoolConfig{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Readiness: ReadinessConfig{
			Interval:       time.Second,
			Deadline:       300 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Terminal: TerminalConfig{
			Path:                 "/api/container/{id}/terminal",
			ConnectTimeout:       10 * time.Second,
			ReconnectDelay:       3 * time.Second,
			MaxReconnectAttempts: 10,
			BufferLines:          1000,
			HistorySize:          100,
			ReadLimit:            1 << 20,
			PingInterval:         30 * time.Second,
		},
		UI: UIConfig{
			LogFile: filepath.Join(defaultStateDir(), "sandboxterm.log"),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := finish(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := validatePermissions(path, hasPlaintextToken(cfg)); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if passphrase := os.Getenv(KeyEnv); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return fmt.Errorf("decrypt secrets: %w", err)
		}
	}
	return Validate(cfg)
}

// ApplyEnvOverrides maps SANDBOXTERM_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv(EnvPrefix + "TOKEN_FILE"); v != "" {
		cfg.Auth.TokenFile = v
	}
	if v := os.Getenv(EnvPrefix + "WORKSPACE"); v != "" {
		cfg.Session.WorkspaceID = v
	}
	if v := os.Getenv(EnvPrefix + "TEMPLATE"); v != "" {
		cfg.Session.Template = v
	}
	if v := os.Getenv(EnvPrefix + "TERMINAL_STREAM_URL"); v != "" {
		cfg.Terminal.StreamURL = v
	}
	if v := os.Getenv(EnvPrefix + "TERMINAL_TOKEN_IN_QUERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Terminal.TokenInQuery = b
		}
	}
	if v := os.Getenv(EnvPrefix + "READINESS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Readiness.Interval = d
		}
	}
	if v := os.Getenv(EnvPrefix + "READINESS_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Readiness.Deadline = d
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Terminal.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv(EnvPrefix + "PLAIN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UI.Plain = b
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		cfg.UI.LogFile = v
	}
	if v := os.Getenv(EnvPrefix + "LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv(EnvPrefix + "TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv(EnvPrefix + "TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// SessionPath substitutes the path-escaped session id into a path template.
func SessionPath(template, escapedID string) string {
	return strings.ReplaceAll(template, "{id}", escapedID)
}
