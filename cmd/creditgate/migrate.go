package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/creditgate/pkg/pg"
	"github.com/dmitrymomot/creditgate/svc/pgstore"
)

func newMigrateCmd() *cobra.Command {
	var envFiles []string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(envFiles...)
			if err != nil {
				return err
			}
			if s.App.StoreDriver != driverPostgres {
				return errors.New("migrate requires STORE_DRIVER=postgres")
			}
			log := newLogger(s.App)

			pool, err := pg.Connect(cmd.Context(), s.Postgres)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pgstore.Migrate(cmd.Context(), pool, s.Postgres, log)
		},
	}
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "additional dotenv files to load")
	return cmd
}
