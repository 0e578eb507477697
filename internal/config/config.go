/*-------------------------------------------------------------------------
 *
 * config.go
 *    Configuration for the NeuronBoard agent server
 *
 * Configuration is layered: built-in defaults, then an optional YAML
 * file, then environment variables (a .env file in the working directory
 * is loaded first when present).
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronBoard/internal/config/config.go
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/neurondb/NeuronBoard/internal/reliability"
)

/* Config holds all server configuration */
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	LLM         LLMConfig         `yaml:"llm"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	OAuth       OAuthConfig       `yaml:"oauth"`
	Events      EventsConfig      `yaml:"events"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Board       BoardConfig       `yaml:"board"`
}

/* ServerConfig holds HTTP server configuration */
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PublicURL    string        `yaml:"public_url"`
}

/* DatabaseConfig holds database configuration */
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` /* postgres or sqlite */
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	Path            string        `yaml:"path"` /* sqlite file */
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

/* LoggingConfig holds logging configuration */
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

/* LLMConfig holds reasoning backend configuration */
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	BaseURL         string        `yaml:"base_url"`
	MaxTokens       int           `yaml:"max_tokens"`
	Temperature     float64       `yaml:"temperature"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
}

/* WorkflowConfig holds engine tuning */
type WorkflowConfig struct {
	MaxTurns            int           `yaml:"max_turns"`
	MailboxSize         int           `yaml:"mailbox_size"`
	PartitionIdle       time.Duration `yaml:"partition_idle"`
	DefaultSystemPrompt string        `yaml:"default_system_prompt"`
	RecoverOnStart      bool          `yaml:"recover_on_start"`
}

/* OAuthConfig holds tool server OAuth bootstrap configuration */
type OAuthConfig struct {
	StateSecret   string                         `yaml:"state_secret"`
	StateTTL      time.Duration                  `yaml:"state_ttl"`
	RedirectURL   string                         `yaml:"redirect_url"`
	SweepInterval time.Duration                  `yaml:"sweep_interval"`
	Providers     map[string]OAuthProviderConfig `yaml:"providers"`
}

/* OAuthProviderConfig describes one OAuth provider a tool server may use */
type OAuthProviderConfig struct {
	Kind         string   `yaml:"kind"` /* generic, oidc or github */
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	IssuerURL    string   `yaml:"issuer_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
	Scopes       []string `yaml:"scopes"`
}

/* EventsConfig holds notification fan-out configuration */
type EventsConfig struct {
	WebSocket     bool   `yaml:"websocket"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

/* CredentialsConfig holds credential resolution configuration */
type CredentialsConfig struct {
	EncryptionKey  string `yaml:"encryption_key"`
	AnthropicEnv   string `yaml:"anthropic_env"`
	DisableEnvVars bool   `yaml:"disable_env_vars"`
}

/* BoardConfig points at the external task board API */
type BoardConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

/* DefaultConfig returns configuration with defaults applied */
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "neuronboard",
			Name:            "neuronboard",
			SSLMode:         "disable",
			Path:            "neuronboard.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		LLM: LLMConfig{
			Provider:        "anthropic",
			Model:           "claude-sonnet-4-5",
			MaxTokens:       8192,
			RetryAttempts:   4,
			RetryInterval:   500 * time.Millisecond,
			RetryMaxElapsed: 2 * time.Minute,
		},
		Workflow: WorkflowConfig{
			MaxTurns:       50,
			MailboxSize:    64,
			PartitionIdle:  5 * time.Minute,
			RecoverOnStart: true,
		},
		OAuth: OAuthConfig{
			StateTTL:      10 * time.Minute,
			SweepInterval: 5 * time.Minute,
			Providers:     map[string]OAuthProviderConfig{},
		},
		Events: EventsConfig{
			WebSocket:     true,
			SubjectPrefix: "neuronboard",
		},
		Credentials: CredentialsConfig{
			AnthropicEnv: "ANTHROPIC_API_KEY",
		},
		Board: BoardConfig{
			Timeout: 15 * time.Second,
		},
	}
}

/* Load builds configuration from defaults, an optional file and the environment */
func Load(path string) (*Config, error) {
	/* A missing .env file is not an error */
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("NEURONBOARD_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load failed: path='%s', error=%w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config parse failed: path='%s', error=%w", path, err)
		}
	}
	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

/* LoadFromEnv overlays environment variables onto cfg */
func LoadFromEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.PublicURL = getEnv("SERVER_PUBLIC_URL", cfg.Server.PublicURL)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.RetryAttempts = getEnvInt("LLM_RETRY_ATTEMPTS", cfg.LLM.RetryAttempts)

	cfg.Workflow.MaxTurns = getEnvInt("WORKFLOW_MAX_TURNS", cfg.Workflow.MaxTurns)
	cfg.Workflow.PartitionIdle = getEnvDuration("WORKFLOW_PARTITION_IDLE", cfg.Workflow.PartitionIdle)
	cfg.Workflow.RecoverOnStart = getEnvBool("WORKFLOW_RECOVER_ON_START", cfg.Workflow.RecoverOnStart)

	cfg.OAuth.StateSecret = getEnv("OAUTH_STATE_SECRET", cfg.OAuth.StateSecret)
	cfg.OAuth.StateTTL = getEnvDuration("OAUTH_STATE_TTL", cfg.OAuth.StateTTL)
	cfg.OAuth.RedirectURL = getEnv("OAUTH_REDIRECT_URL", cfg.OAuth.RedirectURL)

	cfg.Events.WebSocket = getEnvBool("EVENTS_WEBSOCKET", cfg.Events.WebSocket)
	cfg.Events.NATSURL = getEnv("NATS_URL", cfg.Events.NATSURL)
	cfg.Events.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", cfg.Events.SubjectPrefix)

	cfg.Credentials.EncryptionKey = getEnv("CREDENTIALS_ENCRYPTION_KEY", cfg.Credentials.EncryptionKey)

	cfg.Board.APIURL = getEnv("BOARD_API_URL", cfg.Board.APIURL)
	cfg.Board.APIKey = getEnv("BOARD_API_KEY", cfg.Board.APIKey)
}

/* Validate checks the configuration for fatal problems */
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return reliability.NewConfigurationError(reliability.CodeBadConfig, "database host and name are required for postgres", nil)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return reliability.NewConfigurationError(reliability.CodeBadConfig, "database path is required for sqlite", nil)
		}
	default:
		return reliability.NewConfigurationError(reliability.CodeBadConfig,
			fmt.Sprintf("unsupported database driver '%s'", c.Database.Driver), nil)
	}
	if c.Workflow.MaxTurns <= 0 {
		return reliability.NewConfigurationError(reliability.CodeBadConfig, "workflow.max_turns must be positive", nil)
	}
	if c.LLM.Provider != "anthropic" {
		return reliability.NewConfigurationError(reliability.CodeBadConfig,
			fmt.Sprintf("unsupported llm provider '%s'", c.LLM.Provider), nil)
	}
	for name, p := range c.OAuth.Providers {
		switch p.Kind {
		case "generic", "oidc", "github":
		default:
			return reliability.NewConfigurationError(reliability.CodeUnknownProvider,
				fmt.Sprintf("oauth provider '%s' has unknown kind '%s'", name, p.Kind), nil)
		}
		if p.Kind == "oidc" && p.IssuerURL == "" {
			return reliability.NewConfigurationError(reliability.CodeBadConfig,
				fmt.Sprintf("oauth provider '%s' requires issuer_url", name), nil)
		}
	}
	if len(c.OAuth.Providers) > 0 && len(c.OAuth.StateSecret) < 32 {
		return reliability.NewConfigurationError(reliability.CodeBadConfig, "oauth.state_secret must be at least 32 bytes", nil)
	}
	return nil
}

/* DSN returns the driver specific connection string */
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

/* Addr returns the listen address */
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
