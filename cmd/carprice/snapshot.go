package main

import (
	"fmt"
	"os"

	"carprice/internal/metrics"
	"carprice/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	snapshotOut   string
	snapshotForce bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write the reference data and fitted encoder to a snapshot file",
	Long: `snapshot parses the configured CSV files, fits the target encoder and stores
both in a BoltDB file. Pointing snapshotPath at that file lets serve start
without parsing or fitting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := snapshotOut
		if path == "" {
			path = settings.SnapshotPath
		}
		if path == "" {
			return fmt.Errorf("no output path: pass --out or set snapshotPath")
		}
		if _, err := os.Stat(path); err == nil {
			if !snapshotForce {
				return fmt.Errorf("%s exists, pass --force to replace it", path)
			}
			if err := os.Remove(path); err != nil {
				return err
			}
		}

		mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
		data, err := loadCSVs(cmd.Context(), settings)
		if err != nil {
			return err
		}
		enc, err := fitEncoder(data.reference, settings, mw)
		if err != nil {
			return err
		}

		store, err := storage.Create(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.PutDataset(storage.ReferenceDataset, data.reference, datasetOptions(settings, settings.DatasetScale)); err != nil {
			return err
		}
		if data.stats != nil {
			if err := store.PutDataset(storage.StatsDataset, data.stats, datasetOptions(settings, settings.StatsScale)); err != nil {
				return err
			}
		}
		if err := store.PutEncoder(enc); err != nil {
			return err
		}

		info, err := store.Info()
		if err != nil {
			return err
		}
		log.Info().
			Str("path", path).
			Strs("datasets", info.Datasets).
			Int("encoder_rows", enc.Rows).
			Msg("Snapshot written")
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotOut, "out", "", "snapshot file (defaults to snapshotPath from config)")
	snapshotCmd.Flags().BoolVar(&snapshotForce, "force", false, "replace an existing snapshot")
	rootCmd.AddCommand(snapshotCmd)
}
