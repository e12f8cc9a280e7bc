package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urban-climate-lab/resilience-cli/internal/store"
	"github.com/urban-climate-lab/resilience-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <query>",
	Short: "Resolve an address or coordinate pair through the cascade",
	Long: `Runs the query through the geocoding cascade: literal "lat, lng"
parsing first, then Nominatim when geocode.user_agent is configured.
Results are cached in the store when store.dsn is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		res, err := newGeocoder(cache).Geocode(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "geocode")
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return eris.Wrap(err, "geocode: marshal result")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
