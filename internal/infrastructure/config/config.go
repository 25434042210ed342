package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats for the sql_db_query tool.
const (
	OutputJSON     = "json"
	OutputMarkdown = "md"
)

// Config is the root configuration structure for sqlgate.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	MCP      MCPConfig      `yaml:"mcp"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// Migrate applies embedded migrations at startup.
	Migrate bool `yaml:"migrate"`
	// LogStatements logs every statement at debug level.
	LogStatements bool `yaml:"log_statements"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// Empty lists fall back to the API defaults; empty origins allow any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// MCPConfig contains the database tool server settings.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is where the streamable HTTP handler is mounted.
	Path string `yaml:"path"`
	// AuthToken protects the HTTP mount. Falls back to the API bearer token.
	AuthToken string `yaml:"auth_token"`
	// OutputFormat is "json" or "md".
	OutputFormat string `yaml:"output_format"`
	// ReadOnly makes sql_db_query refuse anything sql_query_checker rejects.
	ReadOnly bool `yaml:"read_only"`
	// SampleRows is how many rows get_table_schema returns per table.
	SampleRows int `yaml:"sample_rows"`
	// Schema qualifies table lookups ("main", "temp" or an attached database).
	Schema string `yaml:"schema"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	// BearerToken is the static token clients send as "Authorization: Bearer".
	BearerToken string    `yaml:"bearer_token"`
	JWT         JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the lifetime of minted tokens (minutes).
	TokenTTL int `yaml:"token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults); an empty path skips the file
//  3. Environment variables (override file values)
//
// A .env file, when used, is loaded into the process environment by the
// CLI before Load is called.
//
// Parameters:
//   - path: Path to the YAML configuration file, or ""
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/sqlgate.db",
			WALMode:     true,
			BusyTimeout: 5,
			Migrate:     true,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		MCP: MCPConfig{
			Enabled:      true,
			Path:         "/dbtools/mcp",
			OutputFormat: OutputJSON,
			ReadOnly:     true,
			SampleRows:   2,
			Schema:       "main",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sqlgate",
			},
			QoS:         1,
			TopicPrefix: "sqlgate",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "sqlgate",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides copies set environment variables over file values.
// Most follow SQLGATE_SECTION_KEY; the token and tool variables keep the
// names existing deployments already set.
func applyEnvOverrides(cfg *Config) {
	strs := []struct {
		env string
		dst *string
	}{
		{"SQLGATE_DATABASE_PATH", &cfg.Database.Path},
		{"SQLGATE_API_HOST", &cfg.API.Host},
		{"API_BEARER_TOKEN", &cfg.Security.BearerToken},
		{"SQLGATE_JWT_SECRET", &cfg.Security.JWT.Secret},
		{"MCP_AUTH_TOKEN", &cfg.MCP.AuthToken},
		{"DB_SCHEMA", &cfg.MCP.Schema},
		{"SQLGATE_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"SQLGATE_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"SQLGATE_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"SQLGATE_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
	}
	for _, o := range strs {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("OUTPUT_FORMAT"); v != "" {
		cfg.MCP.OutputFormat = strings.ToLower(v)
	}
	if v := os.Getenv("SQLGATE_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			port = -1 // reported by Validate
		}
		cfg.API.Port = port
	}
}

// Validate checks the configuration for errors and security issues.
// Every problem is reported, not just the first.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch {
	case c.Database.Path == "":
		errs = append(errs, "database.path is required")
	case c.Database.Path == ":memory:" || strings.HasPrefix(c.Database.Path, "file::memory:"):
		// Each request, tool call and the audit writer open their own
		// connection, and every in-memory connection is a separate database.
		errs = append(errs, "database.path must be a file; in-memory databases are not shared between connections")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	switch c.MCP.OutputFormat {
	case OutputJSON, OutputMarkdown:
	default:
		errs = append(errs, fmt.Sprintf("mcp.output_format must be %q or %q", OutputJSON, OutputMarkdown))
	}
	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, "mcp.path must start with /")
	}
	if c.MCP.SampleRows < 0 {
		errs = append(errs, "mcp.sample_rows must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when MQTT is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when InfluxDB is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when InfluxDB is enabled")
		}
	}

	// The JWT secret is optional; when present it must resist brute force.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the host:port the API listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// MCPToken returns the token protecting the tool server mount.
func (c *Config) MCPToken() string {
	if c.MCP.AuthToken != "" {
		return c.MCP.AuthToken
	}
	return c.Security.BearerToken
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
