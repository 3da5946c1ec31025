package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/stravella/chatwidget/internal/metrics"
	"github.com/stravella/chatwidget/internal/server"
	"github.com/stravella/chatwidget/internal/session"
	"github.com/stravella/chatwidget/internal/widget"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

func newServeCmd(a *app) *cobra.Command {
	var secure bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a preview page hosting one widget per visitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(secure)
		},
	}
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "mark the visitor cookie Secure (behind TLS)")
	return cmd
}

func (a *app) serve(secureCookies bool) error {
	// Fail early on a bad global config rather than on the first page load.
	if _, err := a.sources(); err != nil {
		return err
	}

	db := a.openStore()
	if db != nil {
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client := a.client()
	sessions := session.NewManager(func(visitorID string, page ...widgetconfig.Overrides) (*widget.Widget, error) {
		sources, err := a.sources(page...)
		if err != nil {
			return nil, err
		}
		return widget.Mount(widget.MountOptions{
			Sources:          sources,
			ConfigOptions:    a.configOptions(),
			Storage:          storageFor(db, visitorID),
			Client:           client,
			Logger:           a.log.With().Str("visitor", visitorID).Logger(),
			ExchangeObserver: m,
			IdentityObserver: m,
		})
	}).WithGauge(m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic cleanup of idle visitor widgets
	go func() {
		ticker := time.NewTicker(cleanupInterval(a.cfg.SessionMaxAge))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.Cleanup(a.cfg.SessionMaxAge); n > 0 {
					a.log.Debug().Int("removed", n).Msg("dropped idle widgets")
				}
			}
		}
	}()

	srv := &http.Server{
		Addr: ":" + a.cfg.Port,
		Handler: server.New(server.Options{
			Sessions:      sessions,
			Gatherer:      reg,
			Logger:        a.log,
			SecureCookies: secureCookies,
		}).Router(),
		ReadTimeout: 10 * time.Second,
		// Exchanges have no deadline unless STRAVELLA_REQUEST_TIMEOUT sets one.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("api_base", a.cfg.APIBase).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	stop()
	a.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info().Msg("stopped")
	return nil
}

// cleanupInterval sweeps at half the idle lifetime, but never more often
// than once a second.
func cleanupInterval(maxAge time.Duration) time.Duration {
	return max(maxAge/2, time.Second)
}
