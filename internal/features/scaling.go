package features

import (
	"math"

	"carprice/internal/vehicle"
)

// Log1p is ln(1+x). Inputs whose result is not finite (x <= -1, NaN, +Inf)
// are rejected, since the vector must survive JSON encoding for remote models.
func Log1p(field string, x float64) (float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 1) || x <= -1 {
		return 0, &vehicle.DomainError{Field: field, Value: x}
	}
	return math.Log1p(x), nil
}

// Expm1 is e^x - 1, the inverse of Log1p.
func Expm1(x float64) float64 {
	return math.Expm1(x)
}
