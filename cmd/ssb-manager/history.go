package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/slaweally/SSB-Manager/internal/config"
	"github.com/slaweally/SSB-Manager/internal/history"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent backup runs",
	Long:  `List recent backup runs from the configured history store, newest first.`,
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to show")
}

func showHistory(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		_ = cmd.Help()
		return fmt.Errorf("config file is required")
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	if cfg.History == nil {
		log.Error().Msg("history is not configured")
		return fmt.Errorf("history is not configured in %s", configFile)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.History.Path).Msg("failed to open history store")
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		log.Error().Err(err).Msg("failed to query history")
		return err
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "FAILED (" + rec.FailedStep + ")"
		}

		fmt.Printf("%-8s %-10s %-22s %8s  %s\n",
			rec.Class,
			status,
			humanize.Time(rec.StartedAt),
			rec.Duration.Round(time.Second),
			rec.Destination,
		)
		if !rec.Success && rec.Message != "" {
			fmt.Printf("         %s\n", rec.Message)
		}
		if rec.DBsDumped > 0 || rec.DBsFailed > 0 {
			fmt.Printf("         databases: %d dumped, %d failed\n", rec.DBsDumped, rec.DBsFailed)
		}
	}

	return nil
}
