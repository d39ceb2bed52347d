package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"case-rag/internal/db"
)

var migrateDrop bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres tables and indexes",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDrop, "drop", false, "drop existing tables first")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn is not configured")
	}
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	bunDB := db.NewDB(sqldb, cfg.Database.Debug)
	defer bunDB.Close()

	ctx := cmd.Context()
	if migrateDrop {
		if err := db.DropTables(ctx, bunDB); err != nil {
			return err
		}
		log.Info().Msg("Dropped tables")
	}
	if err := db.InitDB(ctx, bunDB, cfg.Database.VectorSize); err != nil {
		return err
	}
	log.Info().Int("vector_size", cfg.Database.VectorSize).Msg("Database ready")
	return nil
}
