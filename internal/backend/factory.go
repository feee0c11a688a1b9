package backend

import (
	"context"
	"fmt"
	"log/slog"

	"agencyfund/internal/cache"
	applog "agencyfund/internal/log"
	"agencyfund/internal/report"
	gsheet "agencyfund/internal/report/google"
	reportmem "agencyfund/internal/report/memory"
	"agencyfund/internal/session"
	"agencyfund/internal/storage"
	"agencyfund/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateLedgerStore implements Factory.CreateLedgerStore
func (f *DefaultFactory) CreateLedgerStore(_ context.Context, config Config) (*LedgerResult, error) {
	switch config.Data {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite ledger", applog.FieldComponent, applog.ComponentStorage, "db_path", config.SQLiteDBPath)
		return &LedgerResult{Store: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory ledger", applog.FieldComponent, applog.ComponentStorage)
		return &LedgerResult{Store: memory.New()}, nil
	}
	return nil, fmt.Errorf("unsupported data backend: %s", config.Data)
}

// CreateSessionStore implements Factory.CreateSessionStore
func (f *DefaultFactory) CreateSessionStore(ctx context.Context, config Config, mgr *cache.Manager) (*SessionResult, error) {
	switch config.Session {
	case RedisBackend:
		store, err := session.NewRedisStoreFromURL(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis session store: %w", err)
		}
		f.logger.Info("Initialized Redis session store", applog.FieldComponent, applog.ComponentSession)
		return &SessionResult{Store: store, Cleanup: store.Close}, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory session store",
			applog.FieldComponent, applog.ComponentSession,
			"max_sessions", config.MaxSessions)
		return &SessionResult{Store: session.NewMemoryStore(config.MaxSessions, mgr)}, nil
	}
	return nil, fmt.Errorf("unsupported session backend: %s", config.Session)
}

// CreateReportWriter implements Factory.CreateReportWriter
func (f *DefaultFactory) CreateReportWriter(ctx context.Context, config Config) (report.Writer, error) {
	switch config.Report {
	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:    config.GoogleSpreadsheetID,
			ExpensesSheet:    config.GoogleExpensesSheet,
			SettlementsSheet: config.GoogleSettlementsSheet,
			CredentialsJSON:  config.GoogleServiceAccountJSON,
			CredentialsFile:  config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets reports", applog.FieldComponent, applog.ComponentReport)
		return cli, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory reports", applog.FieldComponent, applog.ComponentReport)
		return reportmem.New(), nil
	}
	return nil, fmt.Errorf("unsupported report backend: %s", config.Report)
}
