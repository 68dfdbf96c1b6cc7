// Package space provides free-disk-space measurement and threshold checks.
package space

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Service defines the interface for free-space queries.
type Service interface {
	// FreeGB returns the free space on path's filesystem in whole GB.
	// Sub-GB remainders are dropped.
	FreeGB(path string) (int, error)
	// Check reports whether path's filesystem has at least requiredGB free.
	// Exactly equal counts as sufficient.
	Check(path string, requiredGB int) (bool, error)
}

// StatfsFunc allows mocking the statfs syscall in tests.
type StatfsFunc func(path string, st *unix.Statfs_t) error

// Impl implements the space Service interface.
type Impl struct {
	statfs StatfsFunc
	logger zerolog.Logger
}

// New creates a new space service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		statfs: unix.Statfs,
		logger: logger,
	}
}

// NewWithStatfs creates a new space service with a custom statfs (for testing).
func NewWithStatfs(logger zerolog.Logger, statfs StatfsFunc) *Impl {
	return &Impl{
		statfs: statfs,
		logger: logger,
	}
}

// FreeGB measures free space in whole GB, floor of free-KB/1024/1024.
// Read-only and race-tolerant: a later measurement may legitimately differ
// if concurrent processes consume space.
func (s *Impl) FreeGB(path string) (int, error) {
	var st unix.Statfs_t
	if err := s.statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	freeKB := st.Bavail * uint64(st.Bsize) / 1024
	return int(freeKB / 1024 / 1024), nil
}

// Check compares free space on path against requiredGB.
func (s *Impl) Check(path string, requiredGB int) (bool, error) {
	freeGB, err := s.FreeGB(path)
	if err != nil {
		return false, err
	}

	ok := freeGB >= requiredGB
	var event *zerolog.Event
	if ok {
		event = s.logger.Info()
	} else {
		event = s.logger.Warn()
	}
	event.
		Str("path", path).
		Str("free", humanize.IBytes(uint64(freeGB)*humanize.GiByte)).
		Int("free_gb", freeGB).
		Int("required_gb", requiredGB).
		Bool("sufficient", ok).
		Msg("free space checked")

	return ok, nil
}
