package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"carprice/internal/metrics"
	"carprice/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var panelParams stats.PanelParams

var statsCmd = &cobra.Command{
	Use:   "stats [panel]",
	Short: "Print a statistics panel as JSON, or list the panels",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			panels := stats.Panels()
			names := make([]string, 0, len(panels))
			for name := range panels {
				names = append(names, name)
			}
			sort.Strings(names)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%s\n", name, panels[name])
			}
			return tw.Flush()
		}

		mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
		data, err := loadReferenceData(cmd.Context(), settings, mw)
		if err != nil {
			return err
		}
		ds := data.stats
		if ds == nil {
			log.Warn().Msg("No statistics dataset configured, using the reference dataset")
			ds = data.reference
		}
		st, err := stats.New(ds)
		if err != nil {
			return err
		}

		v, err := st.Panel(args[0], panelParams)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	},
}

func init() {
	statsCmd.Flags().IntVar(&panelParams.N, "n", 0, "number of entries (panel default when 0)")
	statsCmd.Flags().IntVar(&panelParams.From, "from", 0, "first model year (2013 when 0)")
	statsCmd.Flags().IntVar(&panelParams.To, "to", 0, "last model year (2023 when 0)")
	statsCmd.Flags().StringVar(&panelParams.Option, "option", "", "option column for option-delta")
	statsCmd.Flags().StringArrayVar(&panelParams.Options, "options", nil, "option columns for option-adoption, repeatable")
	statsCmd.Flags().StringArrayVar(&panelParams.Columns, "columns", nil, "columns for correlation, repeatable")
	statsCmd.SetUsageTemplate(statsCmd.UsageTemplate() + "\nPanels: " + strings.Join(stats.PanelNames(), ", ") + "\n")
	rootCmd.AddCommand(statsCmd)
}
