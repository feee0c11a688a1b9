package backend

import (
	"fmt"

	"agencyfund/internal/config"
)

var (
	dataBackends    = []BackendType{MemoryBackend, SQLiteBackend}
	sessionBackends = []BackendType{MemoryBackend, RedisBackend}
	reportBackends  = []BackendType{MemoryBackend, SheetsBackend}
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	c := Config{
		Data:    BackendType(appConfig.DataBackend),
		Session: BackendType(appConfig.SessionBackend),
		Report:  BackendType(appConfig.ReportBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		RedisURL:    appConfig.RedisURL,
		MaxSessions: appConfig.MaxSessions,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleExpensesSheet:      appConfig.GoogleExpensesSheet,
		GoogleSettlementsSheet:   appConfig.GoogleSettlementsSheet,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !oneOf(c.Data, dataBackends) {
		return fmt.Errorf("invalid data backend: %s", c.Data)
	}
	if !oneOf(c.Session, sessionBackends) {
		return fmt.Errorf("invalid session backend: %s", c.Session)
	}
	if !oneOf(c.Report, reportBackends) {
		return fmt.Errorf("invalid report backend: %s", c.Report)
	}

	if c.Data == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.Session == RedisBackend && c.RedisURL == "" {
		return fmt.Errorf("Redis URL is required for redis session backend")
	}
	if c.Report == SheetsBackend {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets backend")
		}
	}
	return nil
}

func oneOf(bt BackendType, valid []BackendType) bool {
	for _, v := range valid {
		if bt == v {
			return true
		}
	}
	return false
}
