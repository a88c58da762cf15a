package main

import (
	"github.com/spf13/cobra"

	"github.com/juanocv/magalu-cd-location/internal/od"
	"github.com/juanocv/magalu-cd-location/pkg/osrm"
)

var odCmd = &cobra.Command{
	Use:   "od",
	Short: "OSRM travel-time matrices",
	Long:  "Query origin-destination travel times: NE capital pairs and the demand-weighted municipality SLA.",
}

// osrmClient builds the routing client from config, with an optional
// base URL override from the command line.
func osrmClient(baseURL string) osrm.Client {
	if baseURL == "" {
		baseURL = cfg.OSRM.BaseURL
	}
	return osrm.NewClient(
		osrm.WithBaseURL(baseURL),
		osrm.WithProfile(cfg.OSRM.Profile),
		osrm.WithRateLimit(cfg.OSRM.RateLimit),
	)
}

// odOrigins converts the configured origin cities.
func odOrigins() []od.Origin {
	origins := make([]od.Origin, len(cfg.OD.Origins))
	for i, o := range cfg.OD.Origins {
		origins[i] = od.Origin{Name: o.Name, Lat: o.Lat, Lon: o.Lon}
	}
	return origins
}

func init() { rootCmd.AddCommand(odCmd) }
