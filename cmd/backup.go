package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var backupRestore bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or restore the embedded chromem store",
	Long: `Writes the chromem collections to an encrypted file under store.chromem_path,
or restores them from it with --restore. Requires store.encryption_key.`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupRestore, "restore", false, "restore from the backup file instead of writing it")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, _ []string) error {
	if cfg.Store.Backend != "chromem" {
		return errors.New("backup is only available for the chromem store")
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if backupRestore {
		if err := a.chromem.Import(ctx); err != nil {
			return err
		}
		log.Info().Msg("Restored chromem store")
		return nil
	}
	if err := a.chromem.Export(ctx); err != nil {
		return err
	}
	log.Info().Msg("Exported chromem store")
	return nil
}
