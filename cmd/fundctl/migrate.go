package main

import (
	"github.com/spf13/cobra"

	"agencyfund/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQLite schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("db")
		if path == "" {
			path = cfg.SQLiteDBPath
		}

		version, err := storage.RunMigrations(path)
		if err != nil {
			return err
		}
		cmd.Printf("%s is at schema version %d\n", path, version)
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("db", "", "database path (default SQLITE_DB_PATH)")
	rootCmd.AddCommand(migrateCmd)
}
