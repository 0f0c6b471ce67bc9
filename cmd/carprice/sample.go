package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"

	"carprice/internal/vehicle"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	sampleOut  string
	sampleRows int
	sampleSeed int64
)

type sampleModel struct {
	name  string
	base  float64 // price of a new unit
	motor string
}

var sampleModels = []sampleModel{
	{"Gol", 70000, "1.0"},
	{"Onix", 85000, "1.0"},
	{"HB20", 82000, "1.0"},
	{"Palio", 55000, "1.4"},
	{"Corolla", 150000, "2.0"},
	{"Civic", 160000, "2.0"},
	{"Compass", 190000, "1.3"},
}

var (
	sampleCities = []string{"São Paulo", "Curitiba", "Rio de Janeiro", "Belo Horizonte", "Londrina", "Maringá"}
	sampleFuels  = []string{"Flex", "Flex", "Flex", "Gasolina", "Diesel"}
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic listings file for smoke runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Create(sampleOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", sampleOut, err)
		}
		defer f.Close()

		if err := writeSample(f, sampleRows, sampleSeed); err != nil {
			return err
		}
		log.Info().Str("path", sampleOut).Int("rows", sampleRows).Msg("Sample listings written")
		return nil
	},
}

// writeSample writes rows synthetic listings in the reference file layout.
// Prices fall with age and mileage and rise with equipment.
func writeSample(w io.Writer, rows int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := append([]string{"modelo", "combustivel", "ano", "km", "cor", "cambio", "cidade"}, vehicle.OptionFlags...)
	header = append(header, "motor", "preco")
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		m := sampleModels[rng.Intn(len(sampleModels))]
		year := 2005 + rng.Intn(19)
		age := 2024 - year
		km := age*12000 + rng.Intn(15000)
		gearbox := 0
		if rng.Float64() < 0.15+0.03*float64(year-2005) {
			gearbox = 1
		}

		rec := []string{
			m.name,
			sampleFuels[rng.Intn(len(sampleFuels))],
			strconv.Itoa(year),
			strconv.Itoa(km),
			vehicleColour(rng),
			strconv.Itoa(gearbox),
			sampleCities[rng.Intn(len(sampleCities))],
		}

		options := 0
		for range vehicle.OptionFlags {
			v := "0"
			if rng.Float64() < 0.2+0.035*float64(year-2005) {
				v = "1"
				options++
			}
			rec = append(rec, v)
		}

		price := m.base * math.Pow(0.9, float64(age)) * (1 - float64(km)/1e6) * (1 + 0.01*float64(options))
		price *= 0.9 + 0.2*rng.Float64()
		rec = append(rec, m.motor, strconv.FormatFloat(math.Round(price), 'f', 0, 64))

		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func vehicleColour(rng *rand.Rand) string {
	colours := []string{"Branco", "Preto", "Prata", "Cinza"}
	return colours[rng.Intn(len(colours))]
}

func init() {
	sampleCmd.Flags().StringVar(&sampleOut, "out", "sample_listings.csv", "output file")
	sampleCmd.Flags().IntVar(&sampleRows, "rows", 1000, "number of listings")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 1, "random seed")
	rootCmd.AddCommand(sampleCmd)
}
