// Package retention evicts the oldest backup generations when space runs low.
package retention

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/slaweally/SSB-Manager/internal/models"
	"github.com/slaweally/SSB-Manager/internal/services/space"
)

// ErrExhausted is returned when space is still below target but no
// generation remains to evict. Advisory for callers: the run proceeds and
// may fail downstream for lack of space.
var ErrExhausted = errors.New("no generations left to evict")

// Service defines the interface for generation eviction.
type Service interface {
	Reclaim(classRoot string, class models.BackupClass, targetFreeGB int) error
}

// RemoveTreeFunc allows mocking recursive removal in tests.
type RemoveTreeFunc func(path string) error

// Impl implements the retention Service interface.
type Impl struct {
	space      space.Service
	removeTree RemoveTreeFunc
	logger     zerolog.Logger
}

// New creates a new retention service.
func New(logger zerolog.Logger, spaceSvc space.Service) *Impl {
	return &Impl{
		space:      spaceSvc,
		removeTree: os.RemoveAll,
		logger:     logger,
	}
}

// NewWithRemoveTree creates a new retention service with a custom remover
// (for testing).
func NewWithRemoveTree(logger zerolog.Logger, spaceSvc space.Service, removeTree RemoveTreeFunc) *Impl {
	return &Impl{
		space:      spaceSvc,
		removeTree: removeTree,
		logger:     logger,
	}
}

// Reclaim deletes generations under classRoot, oldest first, until free
// space reaches targetFreeGB or none remain. Best-effort and greedy; a
// removed generation is unrecoverable. Free space is measured on the class
// root's parent so a not-yet-created class root does not break measurement.
func (s *Impl) Reclaim(classRoot string, class models.BackupClass, targetFreeGB int) error {
	measurePath := filepath.Dir(classRoot)

	for {
		freeGB, err := s.space.FreeGB(measurePath)
		if err != nil {
			return fmt.Errorf("measuring free space: %w", err)
		}
		if freeGB >= targetFreeGB {
			s.logger.Debug().
				Int("free_gb", freeGB).
				Int("target_gb", targetFreeGB).
				Msg("free space above eviction target")
			return nil
		}

		generations, err := s.listGenerations(classRoot, class)
		if err != nil || len(generations) == 0 {
			s.logger.Error().
				Str("class_root", classRoot).
				Int("free_gb", freeGB).
				Int("target_gb", targetFreeGB).
				Msg("space below target but no generations left to evict")
			return ErrExhausted
		}

		oldest := filepath.Join(classRoot, generations[0])
		if err := s.removeTree(oldest); err != nil {
			return fmt.Errorf("removing generation %s: %w", oldest, err)
		}

		freedTo, err := s.space.FreeGB(measurePath)
		if err != nil {
			return fmt.Errorf("measuring free space: %w", err)
		}
		s.logger.Info().
			Str("evicted", oldest).
			Int("free_gb", freedTo).
			Int("target_gb", targetFreeGB).
			Msg("oldest generation evicted")
	}
}

// listGenerations returns the immediate subdirectories of classRoot whose
// names match the class's generation key, sorted ascending. Name order is
// date order by construction.
func (s *Impl) listGenerations(classRoot string, class models.BackupClass) ([]string, error) {
	entries, err := os.ReadDir(classRoot)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", classRoot, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && class.MatchesKey(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
