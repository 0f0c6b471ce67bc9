package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `;modelo;combustivel;ano;km;cor;cambio;cidade;preco;motor
0;Gol;Flex;2015;50000;Branco;0;Curitiba;R$ 45.5;1.0
1;Onix;Flex;2019;N/D;Prata;1;Londrina;R$ 70;1,4
2;Gol;Gasolina;2012;90000;Preto;0;Curitiba;N/D;1.6
3;Civic;Flex;2020;30000;Cinza;1;Araucária;R$ 120.25
`

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesCells(t *testing.T) {
	ds, err := Load(writeSample(t, sample), Options{PriceScale: 1000})
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []string{"modelo", "combustivel", "ano", "km", "cor", "cambio", "cidade", "preco", "motor"}, ds.Columns())

	assert.Equal(t, "Gol", ds.Text("modelo", 0))
	assert.Equal(t, 2019.0, ds.Number("ano", 1))
	assert.True(t, math.IsNaN(ds.Number("km", 1)), "N/D is missing")
	assert.InDelta(t, 1.4, ds.Number("motor", 1), 1e-9, "decimal comma")
	assert.True(t, math.IsNaN(ds.Number("motor", 3)), "short row padded")
	assert.Equal(t, "", ds.Text("inexistente", 0))

	prices, err := ds.Prices()
	require.NoError(t, err)
	assert.InDelta(t, 45500, prices[0], 1e-6)
	assert.InDelta(t, 70000, prices[1], 1e-6)
	assert.True(t, math.IsNaN(prices[2]))
	assert.InDelta(t, 120250, prices[3], 1e-6)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions())
	assert.Error(t, err)

	_, err = Load(writeSample(t, ""), DefaultOptions())
	assert.Error(t, err)

	_, err = Read(strings.NewReader("a;a\n1;2\n"), DefaultOptions())
	assert.Error(t, err)
}

func TestDistinct(t *testing.T) {
	ds, err := Read(strings.NewReader(sample), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Gol", "Onix", "Civic"}, ds.Distinct("modelo"))
	assert.Equal(t, []string{"Araucária", "Curitiba", "Londrina"}, ds.DistinctSorted("cidade"))
	assert.Nil(t, ds.Distinct("nope"))
}

func TestFingerprint(t *testing.T) {
	a, err := Read(strings.NewReader(sample), DefaultOptions())
	require.NoError(t, err)
	b, err := New(append([]string{""}, a.Columns()...), prefixIndex(a), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c, err := Read(strings.NewReader(sample), Options{PriceScale: 1000})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint(), "price scale changes the target")

	d, err := Read(strings.NewReader(strings.Replace(sample, "Curitiba", "Maringá", 1)), DefaultOptions())
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func prefixIndex(d *Dataset) [][]string {
	rows := make([][]string, d.Len())
	for i := range rows {
		rows[i] = append([]string{"x"}, d.Row(i)...)
	}
	return rows
}

func TestChoicesFrom(t *testing.T) {
	ds, err := Read(strings.NewReader(sample), DefaultOptions())
	require.NoError(t, err)

	c := ChoicesFrom(ds)
	assert.Equal(t, []string{"Gol", "Onix", "Civic"}, c.Modelos)
	assert.Equal(t, []string{"Flex", "Gasolina"}, c.Combustiveis)
	assert.Equal(t, []string{"Araucária", "Curitiba", "Londrina"}, c.Cidades)
	assert.Equal(t, []string{"1.0", "1,4", "1.6"}, c.Motores)
	assert.Equal(t, YearBuckets, c.Anos)
	assert.Equal(t, 1.0, c.Cambio["Automático"])
	assert.Len(t, c.Opcionais, 21)
}
