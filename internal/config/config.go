package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/vdiff/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vdiff.json"

	// DefaultPort is the default server port.
	DefaultPort = 7070

	// DefaultHost is the default server host.
	DefaultHost = "localhost"
)

// Snapshot backends.
const (
	SnapshotNone = "none"
	SnapshotFile = "file"
	SnapshotS3   = "s3"
)

// Config represents the complete vdiff.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Session contains WebSocket session configuration.
	Session SessionConfig `json:"session"`

	// Snapshot selects where rendered trees are stored.
	Snapshot SnapshotConfig `json:"snapshot"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing"`

	// Log contains logging configuration.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings. Durations are Go duration
// strings such as "10s".
type ServerConfig struct {
	Host            string   `json:"host,omitempty"`
	Port            int      `json:"port,omitempty"`
	ReadTimeout     string   `json:"readTimeout,omitempty"`
	WriteTimeout    string   `json:"writeTimeout,omitempty"`
	ShutdownTimeout string   `json:"shutdownTimeout,omitempty"`
	AllowedOrigins  []string `json:"allowedOrigins,omitempty"`
}

// SessionConfig contains session settings.
type SessionConfig struct {
	// MaxSessions bounds the number of live sessions. The least recently
	// used session is closed when a new one would exceed it.
	MaxSessions int `json:"maxSessions,omitempty"`

	// HistorySize is the number of patch frames kept for resumption.
	HistorySize int `json:"historySize,omitempty"`

	// MaxMessageSize is the largest WebSocket message accepted, in bytes.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`

	// PingInterval is how often the server pings idle clients.
	PingInterval string `json:"pingInterval,omitempty"`
}

// SnapshotConfig contains snapshot storage settings.
type SnapshotConfig struct {
	// Backend is one of "none", "file" or "s3".
	Backend string `json:"backend,omitempty"`

	// Dir is the snapshot directory for the file backend.
	Dir string `json:"dir,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the s3 backend.
	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	// CacheSize is the number of snapshots kept in memory in front of the
	// backend. Zero disables the cache.
	CacheSize int `json:"cacheSize,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace,omitempty"`
	Path      string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled"`
	TracerName string `json:"tracerName,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// New creates a new configuration with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     "10s",
			WriteTimeout:    "10s",
			ShutdownTimeout: "15s",
		},
		Session: SessionConfig{
			MaxSessions:    1024,
			HistorySize:    64,
			MaxMessageSize: 1 << 20,
			PingInterval:   "30s",
		},
		Snapshot: SnapshotConfig{
			Backend:   SnapshotNone,
			Dir:       ".vdiff/snapshots",
			CacheSize: 256,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "vdiff",
			Path:      "/metrics",
		},
		Tracing: TracingConfig{
			TracerName: "vdiff",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for vdiff.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'vdiff serve' without --config to use the defaults")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for fields a partial file left
// empty.
func (c *Config) applyDefaults() {
	d := New()
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Session.HistorySize == 0 {
		c.Session.HistorySize = d.Session.HistorySize
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = SnapshotNone
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E102").
			WithDetail("server.port must be between 0 and 65535")
	}
	for name, v := range map[string]string{
		"server.readTimeout":     c.Server.ReadTimeout,
		"server.writeTimeout":    c.Server.WriteTimeout,
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
		"session.pingInterval":   c.Session.PingInterval,
	} {
		if _, err := parseDuration(v); err != nil {
			return errors.New("E102").
				WithDetail(name + ` must be a duration such as "10s"`).
				Wrap(err)
		}
	}
	if c.Session.MaxSessions < 1 {
		return errors.New("E102").WithDetail("session.maxSessions must be at least 1")
	}
	if c.Session.HistorySize < 1 {
		return errors.New("E102").WithDetail("session.historySize must be at least 1")
	}
	switch c.Snapshot.Backend {
	case SnapshotNone, SnapshotFile:
	case SnapshotS3:
		if c.Snapshot.Bucket == "" {
			return errors.New("E102").
				WithDetail("snapshot.bucket is required for the s3 backend")
		}
	default:
		return errors.New("E102").
			WithDetail(`snapshot.backend must be "none", "file" or "s3", got "` + c.Snapshot.Backend + `"`)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("E102").WithDetail("log.level must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New("E102").WithDetail(`log.format must be "text" or "json"`)
	}
	return nil
}

// Address returns the listen address of the server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ReadTimeout returns server.readTimeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ReadTimeout)
	return d
}

// WriteTimeout returns server.writeTimeout as a duration.
func (c *Config) WriteTimeout() time.Duration {
	d, _ := parseDuration(c.Server.WriteTimeout)
	return d
}

// ShutdownTimeout returns server.shutdownTimeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := parseDuration(c.Server.ShutdownTimeout)
	return d
}

// PingInterval returns session.pingInterval as a duration.
func (c *Config) PingInterval() time.Duration {
	d, _ := parseDuration(c.Session.PingInterval)
	return d
}

// SnapshotDir returns the snapshot directory, relative to the config file
// when it is not absolute.
func (c *Config) SnapshotDir() string {
	if filepath.IsAbs(c.Snapshot.Dir) || c.Dir() == "" {
		return c.Snapshot.Dir
	}
	return filepath.Join(c.Dir(), c.Snapshot.Dir)
}

// parseDuration accepts an empty string as zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing vdiff.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent holding a vdiff.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
