package main

import (
	"github.com/ichigozero/taskdesk/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := newLogger()

		db, err := openDB(cfg.Database)
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}

		logger.Log("migrate", "done")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the roles and the admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := newLogger()

		db, err := openDB(cfg.Database)
		if err != nil {
			return err
		}
		if err := migrate(db); err != nil {
			return err
		}
		if err := seed(cmd.Context(), db, cfg.Admin); err != nil {
			return err
		}

		logger.Log("seed", "done", "admin", cfg.Admin.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
