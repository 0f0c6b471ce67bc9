package stats

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"carprice/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStats(t *testing.T) *Stats {
	t.Helper()
	opt := dataset.DefaultOptions()
	opt.PriceScale = 1000
	ds, err := dataset.New(
		[]string{"modelo", "combustivel", "cor", "cidade", "ano", "km", "cambio", "preco",
			"freios ABS", "airbag motorista", "ar-condicionado", "alarme"},
		[][]string{
			{"Gol", "Flex", "Branco", "Curitiba", "2014", "50000", "0", "40", "1", "0", "1", "0"},
			{"Gol", "Flex", "Preto", "Curitiba", "2015", "30000", "0", "50", "1", "1", "1", "1"},
			{"Gol", "Gasolina", "Branco", "Londrina", "2015", "20000", "1", "60", "0", "1", "0", "0"},
			{"Onix", "Flex", "Prata", "Curitiba", "2020", "10000", "1", "90", "1", "1", "1", "1"},
			{"Onix", "Flex", "Branco", "Maringa", "2010", "N/D", "0", "N/D", "0", "0", "0", "0"},
		},
		opt,
	)
	require.NoError(t, err)
	s, err := New(ds)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresColumns(t *testing.T) {
	ds, err := dataset.New([]string{"modelo", "preco"}, [][]string{{"Gol", "1"}}, dataset.DefaultOptions())
	require.NoError(t, err)
	_, err = New(ds)
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	got := sampleStats(t).Summary()

	assert.Equal(t, Summary{
		Vehicles:     5,
		TopModel:     "Gol",
		TopModelName: "Gol",
		TopFuel:      "Flex",
		TopColour:    "Branco",
		MinPrice:     40000,
		MeanPrice:    60000,
		MaxPrice:     90000,
		OldestYear:   2010,
		MeanYear:     2014,
		NewestYear:   2020,
		MinKm:        10000,
		MeanKm:       27500,
		MaxKm:        50000,
	}, got)
}

func TestSummary_TopModelName(t *testing.T) {
	ds, err := dataset.New(
		[]string{"modelo", "cidade", "ano", "preco"},
		[][]string{
			{"Onix LT 1.0 (Flex)", "Curitiba", "2020", "80000"},
			{"Onix LT 1.0 (Flex)", "Londrina", "2021", "85000"},
			{"Gol", "Curitiba", "2015", "40000"},
		},
		dataset.DefaultOptions(),
	)
	require.NoError(t, err)
	s, err := New(ds)
	require.NoError(t, err)

	got := s.Summary()
	assert.Equal(t, "Onix LT 1.0 (Flex)", got.TopModel)
	assert.Equal(t, "Onix LT 1.0", got.TopModelName)

	assert.Equal(t, "Gol", ShortModelName("Gol"))
	assert.Equal(t, "", ShortModelName("(Flex)"))
}

func TestMeanPriceByYear(t *testing.T) {
	got := sampleStats(t).MeanPriceByYear(2013, 2023)

	assert.Equal(t, []YearPrice{
		{Year: 2014, MeanPrice: 40000, Vehicles: 1},
		{Year: 2015, MeanPrice: 55000, Vehicles: 2},
		{Year: 2020, MeanPrice: 90000, Vehicles: 1},
	}, got)
}

func TestOptionCounts(t *testing.T) {
	got := sampleStats(t).OptionCounts(10)

	assert.Equal(t, []Count{{Name: "ar-condicionado", Count: 3}, {Name: "alarme", Count: 2}}, got)
}

func TestTopEquippedModels(t *testing.T) {
	got := sampleStats(t).TopEquippedModels(2)

	assert.Equal(t, []EquippedModel{
		{Modelo: "Gol", Options: 2, Row: 1},
		{Modelo: "Onix", Options: 2, Row: 3},
	}, got)
}

func TestCityPanels(t *testing.T) {
	s := sampleStats(t)

	t.Run("mean price in busiest cities", func(t *testing.T) {
		got := s.MeanPriceTopCities(3)
		// Maringa has no priced listing
		assert.Equal(t, []CityPrice{
			{Cidade: "Curitiba", MeanPrice: 60000, Vehicles: 3},
			{Cidade: "Londrina", MeanPrice: 60000, Vehicles: 1},
		}, got)
	})

	t.Run("best seller per city", func(t *testing.T) {
		got := s.BestSellerByCity(3)
		assert.Equal(t, []CityModel{
			{Cidade: "Curitiba", Modelo: "Gol", Listings: 2},
			{Cidade: "Londrina", Modelo: "Gol", Listings: 1},
			{Cidade: "Maringa", Modelo: "Onix", Listings: 1},
		}, got)
	})

	t.Run("best seller price per city", func(t *testing.T) {
		got := s.BestSellerPriceByCity(10)
		assert.Equal(t, "Gol", got.Modelo)
		assert.Equal(t, []CityPrice{
			{Cidade: "Curitiba", MeanPrice: 45000, Vehicles: 2},
			{Cidade: "Londrina", MeanPrice: 60000, Vehicles: 1},
		}, got.Cities)
	})
}

func TestOptionAdoptionByYear(t *testing.T) {
	s := sampleStats(t)

	got, err := s.OptionAdoptionByYear([]string{"freios ABS", "airbag motorista"}, 2014, 2020)
	require.NoError(t, err)
	assert.Equal(t, []OptionAdoption{
		{Year: 2014, Option: "freios ABS", Percent: 100},
		{Year: 2014, Option: "airbag motorista", Percent: 0},
		{Year: 2015, Option: "freios ABS", Percent: 50},
		{Year: 2015, Option: "airbag motorista", Percent: 100},
		{Year: 2020, Option: "freios ABS", Percent: 100},
		{Year: 2020, Option: "airbag motorista", Percent: 100},
	}, got)

	_, err = s.OptionAdoptionByYear([]string{"teto solar"}, 2014, 2020)
	assert.Error(t, err)
}

func TestOptionPriceDelta(t *testing.T) {
	s := sampleStats(t)

	tests := []struct {
		option  string
		with    float64
		without float64
		diff    float64
	}{
		{"airbag motorista", 55000, 40000, 37.5},
		{"ar-condicionado", 45000, 60000, -25},
	}
	for _, tt := range tests {
		t.Run(tt.option, func(t *testing.T) {
			d, err := s.OptionPriceDelta(tt.option)
			require.NoError(t, err)
			assert.Equal(t, "Gol", d.Modelo)
			assert.Equal(t, tt.with, d.With)
			assert.Equal(t, tt.without, d.Without)
			assert.Equal(t, tt.diff, d.DiffPercent)
		})
	}

	_, err := s.OptionPriceDelta("teto solar")
	assert.Error(t, err)
}

func TestCorrelationMatrix(t *testing.T) {
	s := sampleStats(t)

	m, err := s.CorrelationMatrix([]string{"preco", "ano", "combustivel"})
	require.NoError(t, err)

	r, ok := m.Get("preco", "ano")
	require.True(t, ok)
	assert.InDelta(t, 0.9687, r, 1e-3)

	back, _ := m.Get("ano", "preco")
	assert.Equal(t, r, back)

	diag, _ := m.Get("preco", "preco")
	assert.Equal(t, 1.0, diag)

	undefined, _ := m.Get("preco", "combustivel")
	assert.True(t, math.IsNaN(undefined), "text column has no numeric pairs")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"columns":["preco","ano","combustivel"]`)
	assert.Contains(t, string(data), "null")

	_, err = s.CorrelationMatrix([]string{"preco", "teto solar"})
	assert.Error(t, err)
}

func TestPanel(t *testing.T) {
	s := sampleStats(t)

	assert.Len(t, PanelNames(), 10)
	assert.Len(t, Panels(), 10)

	v, err := s.Panel("summary", PanelParams{})
	require.NoError(t, err)
	assert.Equal(t, "Gol", v.(Summary).TopModel)

	v, err = s.Panel("option-delta", PanelParams{})
	require.NoError(t, err)
	assert.Equal(t, 37.5, v.(OptionDelta).DiffPercent)

	v, err = s.Panel("options", PanelParams{N: 1})
	require.NoError(t, err)
	assert.Len(t, v.([]Count), 1)

	for _, name := range PanelNames() {
		v, err := s.Panel(name, PanelParams{})
		require.NoError(t, err, name)
		_, err = json.Marshal(v)
		assert.NoError(t, err, name)
	}

	_, err = s.Panel("nope", PanelParams{})
	assert.True(t, errors.Is(err, ErrUnknownPanel))
}
