// Package config loads service configuration from YAML plus environment
// overrides for credentials.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/edudashpro/finance-service/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig       `mapstructure:"server"`
	Database DatabaseConfig     `mapstructure:"database"`
	Storage  StorageConfig      `mapstructure:"storage"`
	OpenAI   OpenAIConfig       `mapstructure:"openai"`
	Lark     LarkConfig         `mapstructure:"lark"`
	School   SchoolConfig       `mapstructure:"school"`
	Logger   utils.LoggerConfig `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StorageConfig holds file storage and maintenance configuration
type StorageConfig struct {
	ProofDir        string        `mapstructure:"proof_dir"`
	StatementDir    string        `mapstructure:"statement_dir"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
	OrphanGrace     time.Duration `mapstructure:"orphan_grace"`
	OverdueInterval time.Duration `mapstructure:"overdue_interval"`
}

// OpenAIConfig holds the assistant backend configuration
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// LarkConfig holds the admin-notification bot configuration. All fields
// empty disables notifications.
type LarkConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	AdminChatID string `mapstructure:"admin_chat_id"`
}

// SchoolConfig holds presentation details used on generated statements
type SchoolConfig struct {
	Name string `mapstructure:"name"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/finance.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("storage.proof_dir", "data/proofs")
	viper.SetDefault("storage.statement_dir", "data/statements")
	viper.SetDefault("storage.reap_interval", time.Hour)
	viper.SetDefault("storage.orphan_grace", 24*time.Hour)
	viper.SetDefault("storage.overdue_interval", time.Hour)

	viper.SetDefault("openai.model", "gpt-4o-mini")

	viper.SetDefault("school.name", "EduDash Pro School")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	// Credentials come from the environment, not the YAML file.
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("lark.app_id", "LARK_APP_ID")
	viper.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	viper.BindEnv("lark.admin_chat_id", "LARK_ADMIN_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.ProofDir == "" {
		return fmt.Errorf("storage.proof_dir is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	// Lark is optional, but a partial credential set is a misconfiguration.
	larkSet := 0
	for _, v := range []string{c.Lark.AppID, c.Lark.AppSecret, c.Lark.AdminChatID} {
		if v != "" {
			larkSet++
		}
	}
	if larkSet != 0 && larkSet != 3 {
		return fmt.Errorf("lark configuration requires app_id, app_secret and admin_chat_id together")
	}
	return nil
}

// NotificationsEnabled reports whether the Lark bot is configured
func (c *Config) NotificationsEnabled() bool {
	return c.Lark.AppID != "" && c.Lark.AppSecret != "" && c.Lark.AdminChatID != ""
}
