package stats

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// CorrMatrix holds a symmetric Pearson correlation matrix. Undefined
// coefficients are NaN and encode as JSON null.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// CorrelationMatrix correlates the listed numeric columns pairwise, skipping
// rows where either value is missing. Unknown columns are an error.
func (s *Stats) CorrelationMatrix(cols []string) (*CorrMatrix, error) {
	data := make([][]float64, len(cols))
	for i, col := range cols {
		vals, err := s.ds.NumberColumn(col)
		if err != nil {
			return nil, err
		}
		data[i] = vals
	}

	m := &CorrMatrix{Columns: append([]string(nil), cols...), Values: make([][]float64, len(cols))}
	for i := range cols {
		m.Values[i] = make([]float64, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(data[i], data[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return m, nil
}

// Get returns the coefficient between two columns.
func (m *CorrMatrix) Get(a, b string) (float64, bool) {
	i, j := indexOf(m.Columns, a), indexOf(m.Columns, b)
	if i == len(m.Columns) || j == len(m.Columns) {
		return 0, false
	}
	return m.Values[i][j], true
}

func (m *CorrMatrix) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"columns":[`)
	for i, c := range m.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(c))
	}
	buf.WriteString(`],"values":[`)
	for i, row := range m.Values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(',')
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				buf.WriteString("null")
			} else {
				buf.WriteString(strconv.FormatFloat(round4(v), 'f', -1, 64))
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

func round4(f float64) float64 { return math.Round(f*1e4) / 1e4 }

// PanelParams are the optional knobs of a panel query. Zero values pick the
// panel's defaults.
type PanelParams struct {
	N       int
	From    int
	To      int
	Option  string
	Options []string
	Columns []string
}

type panel struct {
	describe string
	run      func(s *Stats, p PanelParams) (any, error)
}

var panels = map[string]panel{
	"summary": {"headline figures", func(s *Stats, _ PanelParams) (any, error) {
		return s.Summary(), nil
	}},
	"price-by-year": {"mean price per model year", func(s *Stats, p PanelParams) (any, error) {
		from, to := yearRange(p)
		return s.MeanPriceByYear(from, to), nil
	}},
	"options": {"most common options", func(s *Stats, p PanelParams) (any, error) {
		return s.OptionCounts(orN(p.N, 10)), nil
	}},
	"equipped": {"most equipped listings", func(s *Stats, p PanelParams) (any, error) {
		return s.TopEquippedModels(orN(p.N, 10)), nil
	}},
	"city-prices": {"mean price in the busiest cities", func(s *Stats, p PanelParams) (any, error) {
		return s.MeanPriceTopCities(orN(p.N, 20)), nil
	}},
	"city-best-sellers": {"best-selling model per city", func(s *Stats, p PanelParams) (any, error) {
		return s.BestSellerByCity(orN(p.N, 15)), nil
	}},
	"option-adoption": {"share of listings with safety options per year", func(s *Stats, p PanelParams) (any, error) {
		from, to := yearRange(p)
		opts := p.Options
		if len(opts) == 0 {
			opts = s.present(SafetyColumns)
		}
		return s.OptionAdoptionByYear(opts, from, to)
	}},
	"best-seller-prices": {"best-selling model's mean price per city", func(s *Stats, p PanelParams) (any, error) {
		return s.BestSellerPriceByCity(orN(p.N, 100)), nil
	}},
	"option-delta": {"price with and without an option", func(s *Stats, p PanelParams) (any, error) {
		opt := p.Option
		if opt == "" {
			opt = DeltaOptions[0]
		}
		return s.OptionPriceDelta(opt)
	}},
	"correlation": {"Pearson correlation matrix", func(s *Stats, p PanelParams) (any, error) {
		cols := p.Columns
		if len(cols) == 0 {
			cols = s.present(CorrelationColumns)
		}
		return s.CorrelationMatrix(cols)
	}},
}

// Panels lists the panel names with a one-line description each.
func Panels() map[string]string {
	out := make(map[string]string, len(panels))
	for name, p := range panels {
		out[name] = p.describe
	}
	return out
}

// PanelNames returns the panel names sorted.
func PanelNames() []string {
	names := make([]string, 0, len(panels))
	for name := range panels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrUnknownPanel is returned by Panel for names not in PanelNames.
var ErrUnknownPanel = errors.New("unknown statistics panel")

// Panel runs the named panel.
func (s *Stats) Panel(name string, p PanelParams) (any, error) {
	pn, ok := panels[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPanel, name)
	}
	return pn.run(s, p)
}

func orN(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func yearRange(p PanelParams) (int, int) {
	from, to := p.From, p.To
	if from == 0 {
		from = 2013
	}
	if to == 0 {
		to = 2023
	}
	return from, to
}
