// Package mysql provides MySQL catalog listing and per-database dumps.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
)

// systemSchemas is the fixed denylist of engine-internal schemas that are
// never dumped. Not configurable.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

// Service defines the interface for the database backup stage.
type Service interface {
	Backup(ctx context.Context, cfg models.DatabaseConfig, destDir string) (*models.DatabaseBackupResult, error)
}

// Catalog lists the databases known to the server.
type Catalog interface {
	ListDatabases(ctx context.Context, cfg models.DatabaseConfig) ([]string, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	ExecuteToFile(ctx context.Context, env []string, outputPath string, name string, args ...string) error
}

// DefaultCatalog lists databases through the MySQL wire protocol.
type DefaultCatalog struct{}

// ListDatabases runs SHOW DATABASES and returns names in listing order.
func (c *DefaultCatalog) ListDatabases(ctx context.Context, cfg models.DatabaseConfig) ([]string, error) {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing databases: %w", err)
	}

	return names, nil
}

// DefaultExecutor runs mysqldump and writes its stdout to a file.
type DefaultExecutor struct{}

// ExecuteToFile runs a command with stdout redirected to outputPath.
func (e *DefaultExecutor) ExecuteToFile(ctx context.Context, env []string, outputPath string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	output, err := os.Create(outputPath) //nolint:gosec // outputPath is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = output.Close() }()

	cmd.Stdout = output

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump failed: %w", err)
	}

	return nil
}

// Impl implements the mysql Service interface.
type Impl struct {
	catalog  Catalog
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new mysql service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		catalog:  &DefaultCatalog{},
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithDeps creates a new mysql service with custom catalog and executor
// (for testing).
func NewWithDeps(logger zerolog.Logger, catalog Catalog, executor CommandExecutor) *Impl {
	return &Impl{
		catalog:  catalog,
		executor: executor,
		logger:   logger,
	}
}

// Backup dumps every non-system database into destDir, one .sql file per
// database. A single database's failure does not abort the loop; the stage
// itself fails only when destDir cannot be created or the catalog cannot be
// listed.
func (s *Impl) Backup(ctx context.Context, cfg models.DatabaseConfig, destDir string) (*models.DatabaseBackupResult, error) {
	start := time.Now()

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating dump directory %s: %w", destDir, err)
	}

	names, err := s.catalog.ListDatabases(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("enumerating databases: %w", err)
	}

	result := &models.DatabaseBackupResult{}
	for _, name := range names {
		if systemSchemas[name] {
			s.logger.Debug().Str("database", name).Msg("skipping system schema")
			continue
		}
		result.Dumps = append(result.Dumps, s.dump(ctx, cfg, name, destDir))
	}
	result.Duration = time.Since(start)

	s.logger.Info().
		Int("dumped", result.Succeeded()).
		Int("failed", result.Failed()).
		Dur("duration", result.Duration).
		Msg("database stage completed")

	return result, nil
}

// dump runs a consistent single-transaction dump of one database.
func (s *Impl) dump(ctx context.Context, cfg models.DatabaseConfig, name, destDir string) models.DumpResult {
	outputPath := filepath.Join(destDir, name+".sql")
	start := time.Now()

	s.logger.Info().
		Str("database", name).
		Str("output", outputPath).
		Msg("dumping database")

	args := []string{
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		"-h", cfg.Host,
		"-P", fmt.Sprintf("%d", cfg.Port),
		"-u", cfg.Username,
		name,
	}

	env := []string{}
	if cfg.Password != "" {
		env = append(env, fmt.Sprintf("MYSQL_PWD=%s", cfg.Password))
	}

	result := models.DumpResult{
		Database:   name,
		OutputPath: outputPath,
	}

	if err := s.executor.ExecuteToFile(ctx, env, outputPath, "mysqldump", args...); err != nil {
		// Clean up partial file
		_ = os.Remove(outputPath)
		result.Error = err
		result.Duration = time.Since(start)
		s.logger.Error().Err(err).Str("database", name).Msg("dump failed")
		return result
	}

	if info, err := os.Stat(outputPath); err == nil {
		result.SizeBytes = info.Size()
	}
	result.Duration = time.Since(start)

	s.logger.Info().
		Str("database", name).
		Int64("size_bytes", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("dump completed")

	return result
}
