package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/creditgate/pkg/httpserver"
	"github.com/dmitrymomot/creditgate/pkg/logger"
	"github.com/dmitrymomot/creditgate/pkg/pg"
	"github.com/dmitrymomot/creditgate/svc/pgstore"
)

func newServeCmd() *cobra.Command {
	var (
		envFiles []string
		migrate  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(envFiles...)
			if err != nil {
				return err
			}
			log := newLogger(s.App)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate && s.App.StoreDriver == driverPostgres {
				pool, err := pg.Connect(ctx, s.Postgres)
				if err != nil {
					return err
				}
				err = pgstore.Migrate(ctx, pool, s.Postgres, log)
				pool.Close()
				if err != nil {
					return err
				}
			}

			a, err := buildApp(ctx, s, log)
			if err != nil {
				log.ErrorContext(ctx, "failed to start", logger.Error(err))
				return err
			}
			defer a.close()

			srv := httpserver.New(s.HTTP, httpserver.WithLogger(log))
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx, a.handler) })
			if a.sweeper != nil {
				g.Go(func() error { return a.sweeper.Run(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "additional dotenv files to load")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}
