package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath      = "config.toml"
	DefaultHTTPAddr        = ":8080"
	DefaultJWTExpiresIn    = "24h"
	DefaultPGHost          = "127.0.0.1"
	DefaultPGPort          = 5432
	DefaultPGUser          = "postgres"
	DefaultPGDatabase      = "leadrelay"
	DefaultPGSSLMode       = "disable"
	DefaultLLMBaseURL      = "https://api.openai.com/v1"
	DefaultLLMModel        = "gpt-4o-mini"
	DefaultLLMMaxTokens    = 512
	DefaultSheetsBaseURL   = "https://sheets.googleapis.com"
	DefaultSheetsRange     = "Leads!A:F"
	DefaultMonitorInterval = "15m"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	LLM      LLMConfig      `toml:"llm"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Sheets   SheetsConfig   `toml:"sheets"`
	Monitor  MonitorConfig  `toml:"monitor"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type LLMConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	DefaultModel string `toml:"default_model"`
	MaxTokens    int    `toml:"max_tokens"`
}

// WhatsAppConfig configures the outbound messaging transport. SalesInstance
// and SalesNumber name the channel and destination for sales notifications;
// leaving either empty disables notification delivery.
type WhatsAppConfig struct {
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	SalesInstance string `toml:"sales_instance"`
	SalesNumber   string `toml:"sales_number"`
}

// SheetsConfig configures the spreadsheet sink. Leaving SpreadsheetID or
// AccessToken empty disables spreadsheet delivery.
type SheetsConfig struct {
	BaseURL       string `toml:"base_url"`
	SpreadsheetID string `toml:"spreadsheet_id"`
	Range         string `toml:"range"`
	AccessToken   string `toml:"access_token"`
}

type MonitorConfig struct {
	Interval string `toml:"interval"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		LLM: LLMConfig{
			BaseURL:      DefaultLLMBaseURL,
			DefaultModel: DefaultLLMModel,
			MaxTokens:    DefaultLLMMaxTokens,
		},
		Sheets: SheetsConfig{
			BaseURL: DefaultSheetsBaseURL,
			Range:   DefaultSheetsRange,
		},
		Monitor: MonitorConfig{
			Interval: DefaultMonitorInterval,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// DSN renders the postgres connection string for pgx and golang-migrate.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
