package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/payment-switch/internal/config"
	"github.com/akylbek/payment-system/payment-switch/internal/repository"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.NewPostgresStore(db).InitDB(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
