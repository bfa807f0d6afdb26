package cli

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mini-ttc/etaboard/internal/db"
	"github.com/mini-ttc/etaboard/internal/static/gtfs"
)

func NewImportStopsCmd(app *EtaCtlApp) *cobra.Command {
	var zipPath, url, cacheDir string
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "import-stops",
		Short: "Load station metadata from a static GTFS zip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			if zipPath == "" && url == "" {
				return errors.New("one of --zip or --url is required")
			}
			if zipPath == "" {
				zipPath = filepath.Join(cacheDir, "ttc_gtfs.zip")
				if gtfs.IsStale(zipPath, maxAge) {
					if err := gtfs.Download(cmd.Context(), url, zipPath); err != nil {
						return err
					}
				} else {
					log.Printf("GTFS cache is fresh, using %s", zipPath)
				}
			}

			stops, err := gtfs.ParseStops(zipPath)
			if err != nil {
				return err
			}

			database, err := db.Connect(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			n, err := database.ReplaceStations(cmd.Context(), stationsFromStops(stops))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d stations into %s\n", n, cfg.DatabasePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&zipPath, "zip", "", "Path to the GTFS static zip")
	cmd.Flags().StringVar(&url, "url", "", "Download the GTFS static zip from this URL")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "data/cache", "Where downloaded zips are kept")
	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "Re-download when the cached zip is older than this")

	return cmd
}

// stationsFromStops keeps stops with a numeric stop code, last one wins
func stationsFromStops(stops []gtfs.Stop) []db.Station {
	byNum := make(map[int]int)
	var out []db.Station
	for _, s := range stops {
		num, ok := s.StopNum()
		if !ok {
			continue
		}
		st := db.Station{
			StopNum:       num,
			StopID:        s.StopID,
			Name:          s.StopName,
			Direction:     gtfs.Direction(s.StopName),
			Latitude:      s.StopLat,
			Longitude:     s.StopLon,
			ParentStation: s.ParentStation,
		}
		if i, seen := byNum[num]; seen {
			out[i] = st
			continue
		}
		byNum[num] = len(out)
		out = append(out, st)
	}
	return out
}
