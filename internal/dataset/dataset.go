// Package dataset loads the reference table of historical listings. A Dataset is
// immutable once built and may be shared by any number of readers.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Options controls how a delimited file is read.
type Options struct {
	// Delimiter between cells; ';' when zero.
	Delimiter rune
	// NA lists cell values read as missing, besides the empty string.
	NA []string
	// PriceColumn names the sale-price column.
	PriceColumn string
	// PriceScale multiplies every parsed price. The statistics file quotes prices in thousands.
	PriceScale float64
	// KeepIndex keeps a leading pandas index column ("" or "Unnamed: 0").
	KeepIndex bool
}

// DefaultOptions matches the exported listing files.
func DefaultOptions() Options {
	return Options{
		Delimiter:   ';',
		NA:          []string{"N/D"},
		PriceColumn: "preco",
		PriceScale:  1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Delimiter == 0 {
		o.Delimiter = d.Delimiter
	}
	if o.NA == nil {
		o.NA = d.NA
	}
	if o.PriceColumn == "" {
		o.PriceColumn = d.PriceColumn
	}
	if o.PriceScale == 0 {
		o.PriceScale = d.PriceScale
	}
	return o
}

// Dataset is a column-oriented table of listings.
type Dataset struct {
	columns     []string
	index       map[string]int
	text        [][]string  // [column][row], "" when missing
	num         [][]float64 // [column][row], NaN when missing or not numeric
	rows        int
	priceColumn string
	fingerprint string
}

var priceNoise = regexp.MustCompile(`[^\d.]`)

// Load reads a delimited file with a header row.
func Load(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f, opt)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", ds.rows).
		Int("columns", len(ds.columns)).
		Str("fingerprint", ds.fingerprint[:12]).
		Msg("Dataset loaded")

	return ds, nil
}

// Read parses delimited text from r.
func Read(r io.Reader, opt Options) (*Dataset, error) {
	opt = opt.withDefaults()

	reader := csv.NewReader(r)
	reader.Comma = opt.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, rec)
	}

	return New(header, rows, opt)
}

// New builds a dataset from a header and row-major cells. Short rows are padded
// with missing values; cells beyond the header are ignored.
func New(header []string, rows [][]string, opt Options) (*Dataset, error) {
	opt = opt.withDefaults()

	keep := make([]int, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if i == 0 && !opt.KeepIndex && (h == "" || strings.HasPrefix(h, "Unnamed")) {
			continue
		}
		keep = append(keep, i)
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("no columns in header")
	}

	na := make(map[string]struct{}, len(opt.NA))
	for _, v := range opt.NA {
		na[v] = struct{}{}
	}

	ds := &Dataset{
		columns:     make([]string, len(keep)),
		index:       make(map[string]int, len(keep)),
		text:        make([][]string, len(keep)),
		num:         make([][]float64, len(keep)),
		rows:        len(rows),
		priceColumn: opt.PriceColumn,
	}
	for c, src := range keep {
		name := strings.TrimSpace(strings.TrimPrefix(header[src], "\ufeff"))
		if _, dup := ds.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		ds.columns[c] = name
		ds.index[name] = c
		ds.text[c] = make([]string, len(rows))
		ds.num[c] = make([]float64, len(rows))
	}

	hash := sha256.New()
	fmt.Fprintf(hash, "%s\x1f%g\x1e", opt.PriceColumn, opt.PriceScale)
	hash.Write([]byte(strings.Join(ds.columns, "\x1f")))

	for r, rec := range rows {
		hash.Write([]byte{0x1e})
		for c, src := range keep {
			cell := ""
			if src < len(rec) {
				cell = strings.TrimSpace(rec[src])
			}
			if _, missing := na[cell]; missing {
				cell = ""
			}
			ds.text[c][r] = cell
			if ds.columns[c] == opt.PriceColumn {
				ds.num[c][r] = parsePrice(cell, opt.PriceScale)
			} else {
				ds.num[c][r] = parseNumber(cell)
			}
			hash.Write([]byte(cell))
			hash.Write([]byte{0x1f})
		}
	}
	ds.fingerprint = hex.EncodeToString(hash.Sum(nil))

	return ds, nil
}

func parseNumber(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		// decimal comma, as in "1,0"
		if f, err = strconv.ParseFloat(strings.Replace(cell, ",", ".", 1), 64); err != nil {
			return math.NaN()
		}
	}
	return f
}

func parsePrice(cell string, scale float64) float64 {
	digits := priceNoise.ReplaceAllString(cell, "")
	if digits == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return math.NaN()
	}
	return f * scale
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.rows }

// Columns returns the column names in file order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Has reports whether the column exists.
func (d *Dataset) Has(col string) bool {
	_, ok := d.index[col]
	return ok
}

// PriceColumn returns the name of the target column.
func (d *Dataset) PriceColumn() string { return d.priceColumn }

// Fingerprint identifies the dataset content and price parsing; equal
// fingerprints fit identical encoders.
func (d *Dataset) Fingerprint() string { return d.fingerprint }

// Text returns the raw cell, "" when missing or when the column is unknown.
func (d *Dataset) Text(col string, row int) string {
	c, ok := d.index[col]
	if !ok || row < 0 || row >= d.rows {
		return ""
	}
	return d.text[c][row]
}

// Number returns the parsed cell, NaN when missing, not numeric or unknown.
func (d *Dataset) Number(col string, row int) float64 {
	c, ok := d.index[col]
	if !ok || row < 0 || row >= d.rows {
		return math.NaN()
	}
	return d.num[c][row]
}

// TextColumn returns a copy of a whole column's raw cells.
func (d *Dataset) TextColumn(col string) ([]string, error) {
	c, ok := d.index[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	out := make([]string, d.rows)
	copy(out, d.text[c])
	return out, nil
}

// NumberColumn returns a copy of a whole column's parsed values.
func (d *Dataset) NumberColumn(col string) ([]float64, error) {
	c, ok := d.index[col]
	if !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	out := make([]float64, d.rows)
	copy(out, d.num[c])
	return out, nil
}

// Prices returns the target column.
func (d *Dataset) Prices() ([]float64, error) {
	return d.NumberColumn(d.priceColumn)
}

// Row returns row i as raw cells in column order.
func (d *Dataset) Row(i int) []string {
	out := make([]string, len(d.columns))
	for c := range d.columns {
		out[c] = d.text[c][i]
	}
	return out
}

// Distinct returns the non-missing values of a column in first-seen order.
func (d *Dataset) Distinct(col string) []string {
	c, ok := d.index[col]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, v := range d.text[c] {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DistinctSorted is Distinct in lexical order.
func (d *Dataset) DistinctSorted(col string) []string {
	out := d.Distinct(col)
	sort.Strings(out)
	return out
}
