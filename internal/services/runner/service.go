// Package runner orchestrates one backup class run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/slaweally/SSB-Manager/internal/services/mysql"
	"github.com/slaweally/SSB-Manager/internal/services/retention"
	"github.com/slaweally/SSB-Manager/internal/services/rsync"
	"github.com/slaweally/SSB-Manager/internal/services/space"
	"github.com/slaweally/SSB-Manager/internal/services/telegram"
)

// Generation subtree names.
const (
	databasesSubdir = "databases"
	homeFilesSubdir = "home_files"
)

// ErrInsufficientSpace is returned when the preflight check refuses to
// start the run.
var ErrInsufficientSpace = errors.New("insufficient free space for backup")

// Service defines the interface for the backup runner.
type Service interface {
	Run(ctx context.Context, cfg models.BackupConfig, class models.BackupClass) error
}

// Recorder persists run outcomes. Recording failures never affect the run.
type Recorder interface {
	Record(ctx context.Context, rec models.RunRecord) error
}

// Impl implements the runner Service interface.
type Impl struct {
	spaceSvc     space.Service
	retentionSvc retention.Service
	mysqlSvc     mysql.Service
	rsyncSvc     rsync.Service
	telegramSvc  telegram.Service
	recorder     Recorder // nil when history is disabled
	logger       zerolog.Logger
	now          func() time.Time
}

// New creates a new runner service.
func New(logger zerolog.Logger, recorder Recorder) *Impl {
	spaceSvc := space.New(logger)
	return &Impl{
		spaceSvc:     spaceSvc,
		retentionSvc: retention.New(logger, spaceSvc),
		mysqlSvc:     mysql.New(logger),
		rsyncSvc:     rsync.New(logger),
		telegramSvc:  telegram.New(logger),
		recorder:     recorder,
		logger:       logger,
		now:          time.Now,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	spaceSvc space.Service,
	retentionSvc retention.Service,
	mysqlSvc mysql.Service,
	rsyncSvc rsync.Service,
	telegramSvc telegram.Service,
	recorder Recorder,
	now func() time.Time,
) *Impl {
	return &Impl{
		spaceSvc:     spaceSvc,
		retentionSvc: retentionSvc,
		mysqlSvc:     mysqlSvc,
		rsyncSvc:     rsyncSvc,
		telegramSvc:  telegramSvc,
		recorder:     recorder,
		logger:       logger,
		now:          now,
	}
}

// ResolveDestination maps (root, class, date) to the generation directory.
// Pure: identical inputs always yield the identical path, so a re-run in the
// same calendar period targets the same generation.
func ResolveDestination(root string, class models.BackupClass, date time.Time) string {
	return filepath.Join(root, class.String(), class.Key(date))
}

// Run executes one backup class run to completion: preflight space check,
// best-effort eviction, database stage, file stage. Per-database dump
// failures are warnings; a file stage failure fails the run.
func (s *Impl) Run(ctx context.Context, cfg models.BackupConfig, class models.BackupClass) error {
	start := s.now()
	dest := ResolveDestination(cfg.Backup.Root, class, start)
	classRoot := filepath.Dir(dest)

	s.logger.Info().
		Str("class", class.String()).
		Str("destination", dest).
		Str("host", cfg.Backup.Host).
		Msg("starting backup run")

	rec := models.RunRecord{
		Class:       class.String(),
		Destination: dest,
		StartedAt:   start,
	}
	var failedStep string
	var runErr error

	defer func() {
		rec.Duration = s.now().Sub(start)
		rec.Success = runErr == nil
		if runErr != nil {
			rec.FailedStep = failedStep
			rec.Message = runErr.Error()
		}
		s.finishRun(ctx, cfg, rec)
	}()

	// The root must exist before it can be measured; first run on a fresh
	// host creates it here.
	failedStep = "preflight"
	if err := os.MkdirAll(cfg.Backup.Root, 0o750); err != nil {
		runErr = fmt.Errorf("creating backup root %s: %w", cfg.Backup.Root, err)
		return runErr
	}

	// Preflight: refuse to start below the minimum free-space gate.
	ok, err := s.spaceSvc.Check(cfg.Backup.Root, cfg.Space.MinFreeGB)
	if err != nil {
		runErr = fmt.Errorf("preflight check failed: %w", err)
		return runErr
	}
	if !ok {
		runErr = fmt.Errorf("%w: need %dGB free on %s", ErrInsufficientSpace, cfg.Space.MinFreeGB, cfg.Backup.Root)
		return runErr
	}

	// Best-effort eviction down to the stop threshold. Exhaustion is
	// advisory; later stages may still fail from lack of space.
	if err := s.retentionSvc.Reclaim(classRoot, class, cfg.Space.StopFreeGB); err != nil {
		s.logger.Warn().Err(err).Msg("eviction did not restore target free space")
	}

	failedStep = "destination"
	if err := os.MkdirAll(dest, 0o750); err != nil {
		runErr = fmt.Errorf("creating generation directory %s: %w", dest, err)
		return runErr
	}

	if cfg.Database != nil {
		dbResult, err := s.mysqlSvc.Backup(ctx, *cfg.Database, filepath.Join(dest, databasesSubdir))
		switch {
		case err != nil:
			// Stage failure (dump directory or catalog). The file stage
			// still gets its attempt.
			s.logger.Error().Err(err).Msg("database stage failed")
		case dbResult.Failed() > 0:
			rec.DBsDumped = dbResult.Succeeded()
			rec.DBsFailed = dbResult.Failed()
			s.logger.Warn().
				Int("dumped", dbResult.Succeeded()).
				Int("failed", dbResult.Failed()).
				Msg("database stage completed with warnings")
		default:
			rec.DBsDumped = dbResult.Succeeded()
		}
	}

	if cfg.Files != nil {
		failedStep = "files"
		syncResult, err := s.rsyncSvc.Sync(ctx, cfg.Backup.HomeSource, filepath.Join(dest, homeFilesSubdir), cfg.Files.Policy)
		if err != nil {
			runErr = fmt.Errorf("file stage failed: %w", err)
			return runErr
		}
		if syncResult.Error != nil {
			runErr = fmt.Errorf("file stage failed: %w", syncResult.Error)
			return runErr
		}
	}

	s.logger.Info().
		Str("destination", dest).
		Dur("duration", s.now().Sub(start)).
		Msg("backup run completed")

	return nil
}

// finishRun records the outcome and sends the optional notification.
// Neither can fail the run.
func (s *Impl) finishRun(ctx context.Context, cfg models.BackupConfig, rec models.RunRecord) {
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, rec); err != nil {
			s.logger.Error().Err(err).Msg("failed to record run history")
		}
	}

	if cfg.Telegram != nil {
		if err := s.telegramSvc.SendRunSummary(ctx, *cfg.Telegram, rec); err != nil {
			s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		}
	}
}
