// Package models contains the data structures used throughout ssb-manager.
package models

// BackupConfig holds the complete configuration for a backup run. It is
// built once at startup and passed by value; components never reach for
// ambient state.
type BackupConfig struct {
	Backup   BackupSettings
	Space    SpaceBudget
	Database *DatabaseConfig // nil if database stage disabled
	Files    *FileSyncConfig // nil if file stage disabled
	History  *HistoryConfig  // nil if run history disabled
	Telegram *TelegramConfig // nil if notifications disabled
}

// BackupSettings holds the destination tree and source settings.
type BackupSettings struct {
	Root       string // backup root; class/generation dirs live below it
	HomeSource string // source tree for the file stage
	Host       string // reported in logs and notifications
}

// SpaceBudget holds the two free-space thresholds in whole GB.
// StopFreeGB is the eviction target and must be strictly below MinFreeGB,
// the preflight gate.
type SpaceBudget struct {
	MinFreeGB  int
	StopFreeGB int
}

// DatabaseConfig holds MySQL connection settings for the dump stage.
type DatabaseConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// FileSyncConfig holds file stage settings.
type FileSyncConfig struct {
	Policy SyncPolicy
}

// HistoryConfig points at the sqlite run-history store.
type HistoryConfig struct {
	Path string
}

// TelegramConfig holds Telegram notification settings.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}
