package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/slaweally/SSB-Manager/internal/config"
	"github.com/slaweally/SSB-Manager/internal/history"
	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/slaweally/SSB-Manager/internal/services/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <daily|weekly|monthly>",
	Short: "Execute one backup class run",
	Long: `Execute one backup class run:
1. Resolve the dated generation directory for the class
2. Preflight free-space check (refuses to start below min_free_gb)
3. Evict oldest generations while free space is below stop_free_gb
4. Dump all non-system MySQL databases (if configured)
5. Sync the home tree into the generation (if configured)`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"daily", "weekly", "monthly"},
	RunE:      runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	// Invalid class names are rejected before anything else runs.
	class, err := models.ParseBackupClass(args[0])
	if err != nil {
		log.Error().Err(err).Msg("invalid backup class")
		return err
	}

	if configFile == "" {
		log.Error().Msg("config file is required")
		_ = cmd.Help()
		return fmt.Errorf("config file is required")
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("config", configFile).
		Str("root", cfg.Backup.Root).
		Str("class", class.String()).
		Str("host", cfg.Backup.Host).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Open run history store if configured
	var recorder runner.Recorder
	if cfg.History != nil {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.History.Path).Msg("failed to open history store")
			return err
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	// Run backup
	runnerSvc := runner.New(log.Logger, recorder)
	if err := runnerSvc.Run(ctx, *cfg, class); err != nil {
		log.Error().Err(err).Msg("backup run failed")
		return err
	}

	log.Info().Msg("backup run completed successfully")
	return nil
}
