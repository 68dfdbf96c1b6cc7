package models

import (
	"fmt"
	"regexp"
	"time"
)

// BackupClass is the cadence bucket a run belongs to. Each class keeps its
// own generation root and retention pool under the backup root.
type BackupClass int

// Backup classes.
const (
	ClassDaily BackupClass = iota
	ClassWeekly
	ClassMonthly
)

// Generation directory name patterns per class. Names sort
// date-chronologically because the keys are fixed-width digits.
var (
	dailyKeyPattern   = regexp.MustCompile(`^\d{8}$`)
	periodKeyPattern  = regexp.MustCompile(`^\d{6}$`)
	backupClassNames  = map[BackupClass]string{ClassDaily: "daily", ClassWeekly: "weekly", ClassMonthly: "monthly"}
	backupClassValues = map[string]BackupClass{"daily": ClassDaily, "weekly": ClassWeekly, "monthly": ClassMonthly}
)

// ParseBackupClass validates a class name at the boundary.
func ParseBackupClass(s string) (BackupClass, error) {
	c, ok := backupClassValues[s]
	if !ok {
		return 0, fmt.Errorf("invalid backup class %q (expected daily, weekly or monthly)", s)
	}
	return c, nil
}

func (c BackupClass) String() string {
	return backupClassNames[c]
}

// Key returns the calendar bucket for a point in time: YYYYMMDD for daily,
// ISO year+week for weekly, YYYYMM for monthly. Re-running the same class in
// the same period resolves to the same generation.
func (c BackupClass) Key(t time.Time) string {
	switch c {
	case ClassWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d%02d", year, week)
	case ClassMonthly:
		return t.Format("200601")
	default:
		return t.Format("20060102")
	}
}

// MatchesKey reports whether a directory name looks like a generation key
// of this class.
func (c BackupClass) MatchesKey(name string) bool {
	if c == ClassDaily {
		return dailyKeyPattern.MatchString(name)
	}
	return periodKeyPattern.MatchString(name)
}

// SyncPolicy selects the file stage's directory-sync semantics.
type SyncPolicy int

// Sync policies.
const (
	// SyncFull mirrors the source exactly, deleting extraneous files in dest.
	SyncFull SyncPolicy = iota
	// SyncAdditiveOnly copies new files but never overwrites or deletes.
	SyncAdditiveOnly
	// SyncChangedOnly copies files newer than their dest counterpart and
	// never deletes. This is a partial resync, not a skip-if-unchanged.
	SyncChangedOnly
)

var (
	syncPolicyNames  = map[SyncPolicy]string{SyncFull: "full", SyncAdditiveOnly: "additive", SyncChangedOnly: "changed"}
	syncPolicyValues = map[string]SyncPolicy{"full": SyncFull, "additive": SyncAdditiveOnly, "changed": SyncChangedOnly}
)

// ParseSyncPolicy validates a policy name at the boundary.
func ParseSyncPolicy(s string) (SyncPolicy, error) {
	p, ok := syncPolicyValues[s]
	if !ok {
		return 0, fmt.Errorf("invalid sync policy %q (expected full, additive or changed)", s)
	}
	return p, nil
}

func (p SyncPolicy) String() string {
	return syncPolicyNames[p]
}

// DumpResult holds the outcome of a single database dump.
type DumpResult struct {
	Database   string
	OutputPath string
	SizeBytes  int64
	Duration   time.Duration
	Error      error
}

// DatabaseBackupResult aggregates per-database dump outcomes for one run.
type DatabaseBackupResult struct {
	Dumps    []DumpResult
	Duration time.Duration
}

// Succeeded returns the number of databases dumped without error.
func (r *DatabaseBackupResult) Succeeded() int {
	n := 0
	for _, d := range r.Dumps {
		if d.Error == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of databases whose dump failed.
func (r *DatabaseBackupResult) Failed() int {
	return len(r.Dumps) - r.Succeeded()
}

// SyncResult holds the outcome of a file-sync operation.
type SyncResult struct {
	Duration time.Duration
	Error    error
}

// RunRecord is one backup run as stored in the history store and
// summarized in notifications.
type RunRecord struct {
	Class       string
	Destination string
	StartedAt   time.Time
	Duration    time.Duration
	Success     bool
	FailedStep  string
	Message     string
	DBsDumped   int
	DBsFailed   int
}
