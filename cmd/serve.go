package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/server"
	"github.com/urban-climate-lab/resilience-cli/internal/store"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP API",
	Long: `Loads the datasets once, fits the normalization windows, and serves
the interactive API: field toggles, focus-radius updates, rankings and
shelter routes all operate on one shared session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		sess, err := buildSession(ctx)
		if err != nil {
			return err
		}

		// Persist geocode lookups when a store is configured.
		var cache geocode.Cache
		if cfg.Store.DSN != "" {
			st, err := store.Open(ctx, cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			cache = store.NewGeocodeCache(st)
		}

		srv := server.New(sess, server.WithGeocoder(newGeocoder(cache)))

		zap.L().Info("session ready",
			zap.Int("points", len(sess.Points())),
			zap.Int("shelters", len(sess.Shelters())),
		)
		return srv.ListenAndServe(ctx, cfg.Server.Port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
