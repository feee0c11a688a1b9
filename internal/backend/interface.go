package backend

import (
	"context"

	"agencyfund/internal/cache"
	"agencyfund/internal/ledger"
	"agencyfund/internal/report"
	"agencyfund/internal/session"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// LedgerResult carries the fund store and its cleanup.
type LedgerResult struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// SessionResult carries the session store and its cleanup.
type SessionResult struct {
	Store   session.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateLedgerStore(ctx context.Context, config Config) (*LedgerResult, error)
	// CreateSessionStore registers in-memory stores with mgr for expiry
	// sweeps; mgr may be nil.
	CreateSessionStore(ctx context.Context, config Config, mgr *cache.Manager) (*SessionResult, error)
	CreateReportWriter(ctx context.Context, config Config) (report.Writer, error)
}

// Config holds configuration for backend creation
type Config struct {
	Data    BackendType
	Session BackendType
	Report  BackendType

	// SQLite specific
	SQLiteDBPath string

	// Session specific
	RedisURL    string
	MaxSessions int

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleExpensesSheet      string
	GoogleSettlementsSheet   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
	RedisBackend  BackendType = "redis"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}
