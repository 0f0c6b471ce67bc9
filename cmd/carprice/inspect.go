package main

import (
	"fmt"
	"text/tabwriter"

	"carprice/internal/storage"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [snapshot]",
	Short: "Show what a snapshot file holds",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := settings.SnapshotPath
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no snapshot given and snapshotPath not set")
		}

		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		info, err := store.Info()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "snapshot\t%s\n", path)
		fmt.Fprintf(tw, "created\t%s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		for _, name := range info.Datasets {
			ds, err := store.Dataset(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "dataset %s\t%d rows, %d columns, fingerprint %.12s\n", name, ds.Len(), len(ds.Columns()), ds.Fingerprint())
		}
		for _, fp := range info.Encoders {
			enc, err := store.Encoder(fp)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "encoder %.12s\t%d rows, prior %.2f, fitted %s\n", fp, enc.Rows, enc.Prior, enc.FittedAt.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
