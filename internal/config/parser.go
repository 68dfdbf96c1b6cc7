// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/spf13/viper"
)

// Default free-space thresholds in GB.
const (
	defaultMinFreeGB  = 10
	defaultStopFreeGB = 5
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.BackupConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BackupConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{}

	// Parse backup settings (required).
	cfg.Backup = models.BackupSettings{
		Root:       p.expandEnv(p.v.GetString("backup.root")),
		HomeSource: p.expandEnv(p.v.GetString("backup.home_source")),
		Host:       p.v.GetString("backup.host"),
	}

	if cfg.Backup.Root == "" {
		return nil, fmt.Errorf("backup.root is required")
	}

	// Set default host if not specified.
	if cfg.Backup.Host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			cfg.Backup.Host = "unknown"
		} else {
			cfg.Backup.Host = hostname
		}
	}

	// Parse space budget.
	cfg.Space = models.SpaceBudget{
		MinFreeGB:  p.v.GetInt("space.min_free_gb"),
		StopFreeGB: p.v.GetInt("space.stop_free_gb"),
	}

	if cfg.Space.MinFreeGB == 0 {
		cfg.Space.MinFreeGB = defaultMinFreeGB
	}
	if cfg.Space.StopFreeGB == 0 {
		cfg.Space.StopFreeGB = defaultStopFreeGB
	}
	if cfg.Space.MinFreeGB < 0 || cfg.Space.StopFreeGB < 0 {
		return nil, fmt.Errorf("space thresholds must not be negative")
	}
	if cfg.Space.StopFreeGB >= cfg.Space.MinFreeGB {
		return nil, fmt.Errorf("space.stop_free_gb (%d) must be lower than space.min_free_gb (%d)",
			cfg.Space.StopFreeGB, cfg.Space.MinFreeGB)
	}

	// Parse optional database config. Section present means the database
	// stage is included in runs.
	if p.v.IsSet("database") {
		cfg.Database = &models.DatabaseConfig{
			Host:     p.v.GetString("database.host"),
			Port:     p.v.GetInt("database.port"),
			Username: p.v.GetString("database.username"),
			Password: p.expandEnv(p.v.GetString("database.password")),
		}

		if cfg.Database.Host == "" {
			cfg.Database.Host = "localhost"
		}
		if cfg.Database.Port == 0 {
			cfg.Database.Port = 3306
		}
		if cfg.Database.Username == "" {
			return nil, fmt.Errorf("database.username is required when database is configured")
		}
	}

	// Parse optional files config. Section present means the file stage is
	// included in runs.
	if p.v.IsSet("files") {
		policyName := p.v.GetString("files.policy")
		if policyName == "" {
			policyName = "full"
		}

		policy, err := models.ParseSyncPolicy(policyName)
		if err != nil {
			return nil, fmt.Errorf("files.policy: %w", err)
		}
		cfg.Files = &models.FileSyncConfig{Policy: policy}

		if cfg.Backup.HomeSource == "" {
			return nil, fmt.Errorf("backup.home_source is required when files is configured")
		}
	}

	// Parse optional history config.
	if p.v.IsSet("history") {
		cfg.History = &models.HistoryConfig{
			Path: p.expandEnv(p.v.GetString("history.path")),
		}

		if cfg.History.Path == "" {
			return nil, fmt.Errorf("history.path is required when history is configured")
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.BackupConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Backup.Root == "" {
		return fmt.Errorf("backup.root is required")
	}

	if cfg.Space.StopFreeGB >= cfg.Space.MinFreeGB {
		return fmt.Errorf("space.stop_free_gb must be lower than space.min_free_gb")
	}

	if cfg.Files != nil && cfg.Backup.HomeSource == "" {
		return fmt.Errorf("backup.home_source is required when files is configured")
	}

	return nil
}
