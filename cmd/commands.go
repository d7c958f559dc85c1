package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mounkaila144/produit-sub000/internal/lifecycle"
	"github.com/Mounkaila144/produit-sub000/internal/server"
	"github.com/Mounkaila144/produit-sub000/pkg/jwtutil"
	"github.com/Mounkaila144/produit-sub000/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the lifecycle scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.migrate(); err != nil {
				return err
			}

			if a.conf.Scheduler.Enabled {
				scheduler, err := lifecycle.NewScheduler(a.service, a.clock, a.conf.Scheduler.Location(), map[string]string{
					lifecycle.SweepExpire: a.conf.Scheduler.ExpireSchedule,
					lifecycle.SweepWarn:   a.conf.Scheduler.WarnSchedule,
				}, logger.Named("scheduler"))
				if err != nil {
					return err
				}
				scheduler.Start(ctx)
				defer scheduler.Stop()
			}

			e := server.New(server.Deps{
				Config:  a.conf,
				Service: a.service,
				Store:   a.store,
				JWT: jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
					SigningKey:      a.conf.JWT.SigningKey,
					ExpirationHours: a.conf.JWT.ExpirationHours,
				}),
				Clock: a.clock,
			})

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("Starting " + serviceName + " on port " + a.conf.Server.Port)
				errCh <- e.Start(":" + a.conf.Server.Port)
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tenants and users tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.migrate()
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep [expire|warn]",
		Short:     "Run one lifecycle sweep now and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{lifecycle.SweepExpire, lifecycle.SweepWarn},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.service.RunSweep(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.log.Info("Sweep report",
				zap.String("sweep", report.Sweep),
				zap.Int("selected", report.Selected),
				zap.Int("changed", report.Changed),
				zap.Int("skipped", report.Skipped),
				zap.Int("notified", report.Notified),
				zap.Int("notify_failed", report.NotifyFailed),
				zap.Bool("lock_held", report.LockHeld),
				zap.Errors("errors", report.Errors()))
			return report.Err
		},
	}
}
