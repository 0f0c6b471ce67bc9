package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"carprice/internal/metrics"
	"carprice/internal/pipeline"
	"carprice/internal/vehicle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	predictSets []string
	predictFile string
	predictJSON bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the price of one car",
	Example: `  carprice predict --set modelo=Gol --set combustivel=Flex --set ano=2015 --set km=50000 \
    --set cor=Branco --set cambio=0 --set cidade=Curitiba --set motor=1.0 --set "freios ABS=sim"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := predictInput(predictFile, predictSets)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		mw := metrics.NewWrapper(metrics.NewWithRegistry(prometheus.NewRegistry()))
		data, err := loadReferenceData(ctx, settings, mw)
		if err != nil {
			return err
		}
		pipe, err := buildPipeline(ctx, settings, data.encoder, mw)
		if err != nil {
			return err
		}

		rec, err := pipe.Schema().RecordFromMap(input)
		if err != nil {
			return err
		}
		res, err := pipe.Run(ctx, rec)
		if errors.Is(err, vehicle.ErrValidation) {
			return errors.New(pipeline.Describe(pipe.Schema(), err))
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if predictJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintf(out, "Preço previsto: %s\n", res.Formatted)
		return nil
	},
}

// predictInput merges a JSON record file with field=value assignments; the
// assignments win.
func predictInput(file string, sets []string) (map[string]any, error) {
	input := make(map[string]any)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read record file: %w", err)
		}
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, fmt.Errorf("parse record file: %w", err)
		}
	}
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q, want field=value", kv)
		}
		input[strings.TrimSpace(k)] = v
	}
	return input, nil
}

func init() {
	predictCmd.Flags().StringArrayVar(&predictSets, "set", nil, "field=value assignment, repeatable")
	predictCmd.Flags().StringVar(&predictFile, "file", "", "JSON file holding the record")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(predictCmd)
}
