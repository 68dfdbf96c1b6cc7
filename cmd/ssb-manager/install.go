package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const configTemplate = `# ssb-manager configuration
backup:
  root: /var/backups/ssb          # generations live under <root>/<class>/<date>
  home_source: /home              # tree synced by the file stage
  # host: myserver                # defaults to the machine hostname

space:
  min_free_gb: 10                 # refuse to start a backup below this
  stop_free_gb: 5                 # evict oldest generations below this (must be < min_free_gb)

# Remove this section to skip database dumps.
database:
  host: localhost
  port: 3306
  username: root
  password: ${SSB_DB_PASSWORD}

# Remove this section to skip the file stage.
files:
  policy: full                    # full (mirror), additive (never overwrite), changed (newer only)

# Optional: record run outcomes in a local sqlite database.
# history:
#   path: /var/lib/ssb-manager/history.db

# Optional: Telegram run summaries.
# telegram:
#   bot_token: ${SSB_TG_TOKEN}
#   chat_id: "123456"
`

// Suggested schedules, one cron line per backup class.
var suggestedSchedules = []struct {
	spec  string
	class string
}{
	{"0 2 * * *", "daily"},
	{"0 3 * * 0", "weekly"},
	{"0 4 1 * *", "monthly"},
}

var (
	installOutput string
	installForce  bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Scaffold a config file and print scheduling instructions",
	Long: `Write a commented configuration template and print the cron lines that
schedule the three backup classes. Never runs a backup.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installOutput, "output", "o", "/etc/ssb-manager/config.yaml", "where to write the config template")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "overwrite an existing config file")
}

func runInstall(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(installOutput); err == nil && !installForce {
		log.Error().Str("file", installOutput).Msg("config file already exists (use --force to overwrite)")
		return fmt.Errorf("config file already exists: %s", installOutput)
	}

	if err := os.MkdirAll(filepath.Dir(installOutput), 0o750); err != nil {
		log.Error().Err(err).Msg("failed to create config directory")
		return err
	}

	if err := os.WriteFile(installOutput, []byte(configTemplate), 0o600); err != nil {
		log.Error().Err(err).Str("file", installOutput).Msg("failed to write config template")
		return err
	}

	binary, err := os.Executable()
	if err != nil {
		binary = "ssb-manager"
	}

	fmt.Printf("Configuration template written to %s\n", installOutput)
	fmt.Println()
	fmt.Println("Edit it, then add these lines to root's crontab (crontab -e):")
	fmt.Println()

	now := time.Now()
	for _, s := range suggestedSchedules {
		fmt.Printf("  %s %s run %s --config %s\n", s.spec, binary, s.class, installOutput)

		sched, err := cron.ParseStandard(s.spec)
		if err != nil {
			continue
		}
		fmt.Printf("      # %s backup, next run %s\n", s.class, sched.Next(now).Format("2006-01-02 15:04"))
	}

	fmt.Println()
	fmt.Println("Validate the edited configuration with:")
	fmt.Printf("  %s validate --config %s\n", binary, installOutput)

	return nil
}
