package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/slaweally/SSB-Manager/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without executing any backup operations.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		_ = cmd.Help()
		return fmt.Errorf("config file is required")
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Backup root: %s\n", cfg.Backup.Root)
	fmt.Printf("  Host: %s\n", cfg.Backup.Host)
	fmt.Println()
	fmt.Println("Space Budget:")
	fmt.Printf("  Preflight minimum: %d GB\n", cfg.Space.MinFreeGB)
	fmt.Printf("  Eviction target: %d GB\n", cfg.Space.StopFreeGB)
	fmt.Println()
	fmt.Println("Stages:")
	fmt.Printf("  Database dumps: %v\n", cfg.Database != nil)
	fmt.Printf("  File sync: %v\n", cfg.Files != nil)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Run history: %v\n", cfg.History != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.Database != nil {
		fmt.Println()
		fmt.Println("Database Configuration:")
		fmt.Printf("  Host: %s\n", cfg.Database.Host)
		fmt.Printf("  Port: %d\n", cfg.Database.Port)
		fmt.Printf("  Username: %s\n", cfg.Database.Username)
		fmt.Printf("  Password: (configured: %v)\n", cfg.Database.Password != "")
	}

	if cfg.Files != nil {
		fmt.Println()
		fmt.Println("File Stage Configuration:")
		fmt.Printf("  Source: %s\n", cfg.Backup.HomeSource)
		fmt.Printf("  Policy: %s\n", cfg.Files.Policy)
	}

	if cfg.History != nil {
		fmt.Println()
		fmt.Println("History Configuration:")
		fmt.Printf("  Path: %s\n", cfg.History.Path)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	return nil
}
