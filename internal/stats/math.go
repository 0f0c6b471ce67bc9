package stats

import (
	"math"
	"sort"
)

// meanAcc averages finite values.
type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	a.sum += v
	a.n++
}

func (a *meanAcc) mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.sum / float64(a.n)
}

// describe returns min, mean and max of the non-NaN values, NaN when there are none.
func describe(vals []float64) (lo, mean, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var acc meanAcc
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		acc.add(v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if acc.n == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return lo, acc.mean(), hi
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// rank counts non-empty values, most frequent first; ties keep first-seen order.
func rank(vals []string) []Count {
	idx := make(map[string]int)
	var out []Count
	for _, v := range vals {
		if v == "" {
			continue
		}
		i, ok := idx[v]
		if !ok {
			i = len(out)
			idx[v] = i
			out = append(out, Count{Name: v})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func mode(vals []string) string {
	r := rank(vals)
	if len(r) == 0 {
		return ""
	}
	return r[0].Name
}

// pearson over pairs where both values are present. NaN with fewer than two
// pairs or no variance.
func pearson(x, y []float64) float64 {
	var n, sx, sy, sxx, syy, sxy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		n++
		sx += x[i]
		sy += y[i]
	}
	if n < 2 {
		return math.NaN()
	}
	mx, my := sx/n, sy/n
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return math.Round(f*100) / 100
}

func zeroNaN(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return f
}

func intOrZero(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(f)
}

func head[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return len(s)
}
