// Package rsync wraps the rsync tool for the file backup stage.
package rsync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
)

// Service defines the interface for directory synchronization.
type Service interface {
	Sync(ctx context.Context, src, dst string, policy models.SyncPolicy) (*models.SyncResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the rsync Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new rsync service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new rsync service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// Sync copies src into dst under the given policy. Archive mode preserves
// permissions, ownership, timestamps and symlinks. Any non-zero rsync exit
// is a stage failure, carried in the result.
func (s *Impl) Sync(ctx context.Context, src, dst string, policy models.SyncPolicy) (*models.SyncResult, error) {
	start := time.Now()
	result := &models.SyncResult{}

	args := []string{"-a"}
	switch policy {
	case models.SyncFull:
		// Mirror: extraneous files in dst are deleted.
		args = append(args, "--delete")
	case models.SyncAdditiveOnly:
		// Never overwrite a file already present in dst.
		args = append(args, "--ignore-existing")
	case models.SyncChangedOnly:
		// Copy only files newer than their dst counterpart; never delete.
		args = append(args, "--update")
	}

	if err := os.MkdirAll(dst, 0o750); err != nil {
		result.Error = fmt.Errorf("creating sync destination %s: %w", dst, err)
		result.Duration = time.Since(start)
		return result, nil
	}

	// Trailing slash on src syncs the tree's contents, not the tree itself.
	args = append(args, ensureTrailingSlash(src), dst)

	s.logger.Info().
		Str("source", src).
		Str("destination", dst).
		Str("policy", policy.String()).
		Msg("starting file sync")

	output, err := s.executor.Execute(ctx, "rsync", args...)
	if err != nil {
		result.Error = fmt.Errorf("rsync failed: %w, output: %s", err, string(output))
		result.Duration = time.Since(start)
		s.logger.Error().Err(result.Error).Msg("file sync failed")
		return result, nil //nolint:nilerr // error is stored in result struct by design
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Dur("duration", result.Duration).
		Msg("file sync completed")

	return result, nil
}

func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
