// Package stats computes the descriptive panels shown next to the price form:
// headline figures, price by year, equipment counts, city rankings and a
// correlation matrix. Results are plain data; rendering is up to the caller.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"carprice/internal/dataset"
	"carprice/internal/vehicle"
)

// EquipmentColumns are the option columns the equipment panels count.
var EquipmentColumns = []string{
	"ar-condicionado", "direção elétrica", "travas elétricas",
	"cd player com MP3", "entrada USB", "vidros elétricos dianteiros",
	"limajuste de alturap. traseiro", "desemb. traseiro", "alarme",
	"câmbio automático", "ajuste de altura",
	"distribuição eletrônica de frenagem,", "controle de tração",
	"retrovisores elétricos", "piloto automático", "Kit Multimídia",
	"bancos de couro", "limp. traseiro",
}

// SafetyColumns are the options tracked year over year.
var SafetyColumns = []string{
	"freios ABS", "airbag motorista", "controle de tração", "distribuição eletrônica de frenagem,",
}

// DeltaOptions are the options offered for the with/without price comparison.
var DeltaOptions = []string{
	"airbag motorista", "freios ABS", "ar-condicionado", "Kit Multimídia", "bancos de couro",
}

// CorrelationColumns is the default correlation matrix layout.
var CorrelationColumns = append(append([]string{"preco", "ano", "km", "cambio"}, vehicle.OptionFlags...), "cilindrada")

// Stats answers panel queries over one dataset. Safe for concurrent use.
type Stats struct {
	ds     *dataset.Dataset
	prices []float64
}

// New checks that ds carries the columns every panel relies on.
func New(ds *dataset.Dataset) (*Stats, error) {
	for _, col := range []string{vehicle.FieldModelo, vehicle.FieldCidade, vehicle.FieldAno} {
		if !ds.Has(col) {
			return nil, fmt.Errorf("statistics dataset has no %q column", col)
		}
	}
	prices, err := ds.Prices()
	if err != nil {
		return nil, fmt.Errorf("statistics dataset: %w", err)
	}
	return &Stats{ds: ds, prices: prices}, nil
}

// Dataset returns the underlying table.
func (s *Stats) Dataset() *dataset.Dataset { return s.ds }

// Summary holds the headline figures.
type Summary struct {
	Vehicles     int     `json:"vehicles"`
	TopModel     string  `json:"top_model"`
	TopModelName string  `json:"top_model_name"` // TopModel without the trim suffix
	TopFuel      string  `json:"top_fuel"`
	TopColour    string  `json:"top_colour"`
	MinPrice     float64 `json:"min_price"`
	MeanPrice    float64 `json:"mean_price"`
	MaxPrice     float64 `json:"max_price"`
	OldestYear   int     `json:"oldest_year"`
	MeanYear     int     `json:"mean_year"`
	NewestYear   int     `json:"newest_year"`
	MinKm        float64 `json:"min_km"`
	MeanKm       float64 `json:"mean_km"`
	MaxKm        float64 `json:"max_km"`
}

func (s *Stats) Summary() Summary {
	out := Summary{
		Vehicles:  s.ds.Len(),
		TopModel:  mode(s.column(vehicle.FieldModelo)),
		TopFuel:   mode(s.column(vehicle.FieldCombustivel)),
		TopColour: mode(s.column(vehicle.FieldCor)),
	}
	out.TopModelName = ShortModelName(out.TopModel)

	lo, mean, hi := describe(s.prices)
	out.MinPrice, out.MeanPrice, out.MaxPrice = zeroNaN(round2(lo)), zeroNaN(round2(mean)), zeroNaN(round2(hi))

	years, _ := s.ds.NumberColumn(vehicle.FieldAno)
	lo, mean, hi = describe(years)
	out.OldestYear, out.MeanYear, out.NewestYear = intOrZero(lo), intOrZero(mean), intOrZero(hi)

	if km, err := s.ds.NumberColumn(vehicle.FieldKm); err == nil {
		lo, mean, hi = describe(km)
		out.MinKm, out.MeanKm, out.MaxKm = zeroNaN(lo), zeroNaN(math.Round(mean)), zeroNaN(hi)
	}
	return out
}

// YearPrice is the mean price of one model year.
type YearPrice struct {
	Year      int     `json:"year"`
	MeanPrice float64 `json:"mean_price"`
	Vehicles  int     `json:"vehicles"`
}

// MeanPriceByYear averages prices per year in [from, to], oldest first.
func (s *Stats) MeanPriceByYear(from, to int) []YearPrice {
	groups := make(map[int]*meanAcc)
	for i := 0; i < s.ds.Len(); i++ {
		y := s.ds.Number(vehicle.FieldAno, i)
		if math.IsNaN(y) || int(y) < from || int(y) > to {
			continue
		}
		acc := groups[int(y)]
		if acc == nil {
			acc = &meanAcc{}
			groups[int(y)] = acc
		}
		acc.add(s.prices[i])
	}

	out := make([]YearPrice, 0, len(groups))
	for y, acc := range groups {
		if acc.n == 0 {
			continue
		}
		out = append(out, YearPrice{Year: y, MeanPrice: round2(acc.mean()), Vehicles: acc.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Count is a named tally.
type Count struct {
	Name  string  `json:"name"`
	Count float64 `json:"count"`
}

// OptionCounts sums each equipment column and returns the top entries.
func (s *Stats) OptionCounts(top int) []Count {
	var out []Count
	for _, col := range EquipmentColumns {
		if !s.ds.Has(col) {
			continue
		}
		vals, _ := s.ds.NumberColumn(col)
		out = append(out, Count{Name: col, Count: sum(vals)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return head(out, top)
}

// EquippedModel is one listing ranked by how many options it carries.
type EquippedModel struct {
	Modelo  string `json:"modelo"`
	Options int    `json:"options"`
	Row     int    `json:"row"`
}

// TopEquippedModels returns the n listings with the most equipment, most equipped first.
func (s *Stats) TopEquippedModels(n int) []EquippedModel {
	cols := s.present(EquipmentColumns)

	out := make([]EquippedModel, s.ds.Len())
	for i := range out {
		total := 0
		for _, col := range cols {
			if v := s.ds.Number(col, i); !math.IsNaN(v) {
				total += int(v)
			}
		}
		out[i] = EquippedModel{Modelo: s.ds.Text(vehicle.FieldModelo, i), Options: total, Row: i}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Options > out[j].Options })
	return head(out, n)
}

// CityPrice is the mean price in one city.
type CityPrice struct {
	Cidade    string  `json:"cidade"`
	MeanPrice float64 `json:"mean_price"`
	Vehicles  int     `json:"vehicles"`
}

// MeanPriceTopCities averages prices over the n cities with the most listings,
// busiest city first.
func (s *Stats) MeanPriceTopCities(n int) []CityPrice {
	cities := head(s.ranked(vehicle.FieldCidade), n)
	acc := s.meanBy(vehicle.FieldCidade, func(int) bool { return true })

	out := make([]CityPrice, 0, len(cities))
	for _, c := range cities {
		if a := acc[c.Name]; a != nil && a.n > 0 {
			out = append(out, CityPrice{Cidade: c.Name, MeanPrice: round2(a.mean()), Vehicles: int(c.Count)})
		}
	}
	return out
}

// CityModel is the best-selling model of a city.
type CityModel struct {
	Cidade   string `json:"cidade"`
	Modelo   string `json:"modelo"`
	Listings int    `json:"listings"`
}

// BestSellerByCity names the most listed model in each of the n busiest cities.
func (s *Stats) BestSellerByCity(n int) []CityModel {
	cities := head(s.ranked(vehicle.FieldCidade), n)
	byCity := make(map[string][]string, len(cities))
	for _, c := range cities {
		byCity[c.Name] = nil
	}
	for i := 0; i < s.ds.Len(); i++ {
		city := s.ds.Text(vehicle.FieldCidade, i)
		if models, ok := byCity[city]; ok {
			byCity[city] = append(models, s.ds.Text(vehicle.FieldModelo, i))
		}
	}

	out := make([]CityModel, 0, len(cities))
	for _, c := range cities {
		counts := rank(byCity[c.Name])
		if len(counts) == 0 {
			continue
		}
		out = append(out, CityModel{Cidade: c.Name, Modelo: counts[0].Name, Listings: int(counts[0].Count)})
	}
	return out
}

// OptionAdoption is the share of one year's listings carrying an option.
type OptionAdoption struct {
	Year    int     `json:"year"`
	Option  string  `json:"option"`
	Percent float64 `json:"percent"`
}

// OptionAdoptionByYear reports, per year in [from, to] and per option, the
// percentage of listings that carry it.
func (s *Stats) OptionAdoptionByYear(options []string, from, to int) ([]OptionAdoption, error) {
	for _, opt := range options {
		if !s.ds.Has(opt) {
			return nil, fmt.Errorf("unknown option column %q", opt)
		}
	}

	type key struct {
		year int
		opt  string
	}
	acc := make(map[key]*meanAcc)
	for i := 0; i < s.ds.Len(); i++ {
		y := s.ds.Number(vehicle.FieldAno, i)
		if math.IsNaN(y) || int(y) < from || int(y) > to {
			continue
		}
		for _, opt := range options {
			k := key{int(y), opt}
			if acc[k] == nil {
				acc[k] = &meanAcc{}
			}
			acc[k].add(s.ds.Number(opt, i))
		}
	}

	out := make([]OptionAdoption, 0, len(acc))
	for k, a := range acc {
		if a.n == 0 {
			continue
		}
		out = append(out, OptionAdoption{Year: k.year, Option: k.opt, Percent: round2(a.mean() * 100)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return indexOf(options, out[i].Option) < indexOf(options, out[j].Option)
	})
	return out, nil
}

// ModelCityPrice is the mean price of the best-selling model in one city.
type ModelCityPrice struct {
	Modelo string      `json:"modelo"`
	Cities []CityPrice `json:"cities"`
}

// BestSellerPriceByCity averages the price of the overall best-selling model in
// each of the n busiest cities that list it, busiest first.
func (s *Stats) BestSellerPriceByCity(n int) ModelCityPrice {
	top := mode(s.column(vehicle.FieldModelo))
	out := ModelCityPrice{Modelo: top, Cities: []CityPrice{}}
	if top == "" {
		return out
	}

	acc := s.meanBy(vehicle.FieldCidade, func(i int) bool {
		return s.ds.Text(vehicle.FieldModelo, i) == top
	})
	for _, c := range head(s.ranked(vehicle.FieldCidade), n) {
		if a := acc[c.Name]; a != nil && a.n > 0 {
			out.Cities = append(out.Cities, CityPrice{Cidade: c.Name, MeanPrice: round2(a.mean()), Vehicles: a.n})
		}
	}
	return out
}

// OptionDelta compares the best-selling model's mean price with and without an option.
type OptionDelta struct {
	Modelo       string  `json:"modelo"`
	Option       string  `json:"option"`
	With         float64 `json:"with"`
	Without      float64 `json:"without"`
	WithCount    int     `json:"with_count"`
	WithoutCount int     `json:"without_count"`
	DiffPercent  float64 `json:"diff_percent"`
}

// OptionPriceDelta fails when the option column is unknown or either group is empty.
func (s *Stats) OptionPriceDelta(option string) (OptionDelta, error) {
	if !s.ds.Has(option) {
		return OptionDelta{}, fmt.Errorf("unknown option column %q", option)
	}
	top := mode(s.column(vehicle.FieldModelo))
	var with, without meanAcc
	for i := 0; i < s.ds.Len(); i++ {
		if s.ds.Text(vehicle.FieldModelo, i) != top {
			continue
		}
		switch s.ds.Number(option, i) {
		case 1:
			with.add(s.prices[i])
		case 0:
			without.add(s.prices[i])
		}
	}
	if with.n == 0 || without.n == 0 || without.mean() == 0 {
		return OptionDelta{}, fmt.Errorf("%s: not enough listings with and without %q to compare", top, option)
	}

	d := OptionDelta{
		Modelo:       top,
		Option:       option,
		With:         round2(with.mean()),
		Without:      round2(without.mean()),
		WithCount:    with.n,
		WithoutCount: without.n,
	}
	d.DiffPercent = round2((with.mean() - without.mean()) / without.mean() * 100)
	return d, nil
}

// present filters cols down to the ones the dataset has.
func (s *Stats) present(cols []string) []string {
	var out []string
	for _, c := range cols {
		if s.ds.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Stats) column(col string) []string {
	vals, _ := s.ds.TextColumn(col)
	return vals
}

// ranked counts the values of col, most frequent first.
func (s *Stats) ranked(col string) []Count {
	return rank(s.column(col))
}

// meanBy averages prices grouped by the text of col over rows accepted by keep.
func (s *Stats) meanBy(col string, keep func(int) bool) map[string]*meanAcc {
	out := make(map[string]*meanAcc)
	for i := 0; i < s.ds.Len(); i++ {
		if !keep(i) {
			continue
		}
		k := s.ds.Text(col, i)
		if k == "" {
			continue
		}
		if out[k] == nil {
			out[k] = &meanAcc{}
		}
		out[k].add(s.prices[i])
	}
	return out
}

// ShortModelName drops the trim description listings carry in parentheses,
// "Onix LT (Flex)" becoming "Onix LT".
func ShortModelName(model string) string {
	if i := strings.IndexByte(model, '('); i >= 0 {
		model = model[:i]
	}
	return strings.TrimSpace(model)
}
