package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// ErrFactorSum is returned when factors 8 to 16 add up to more than one.
var ErrFactorSum = errors.New("la suma de factores 8 a 16 excede 1")

// Montos holds monto_1 .. monto_29, indexed from zero.
type Montos [calificacion.FactorCount]decimal.Decimal

// Monto returns amount n (1-based).
func (m Montos) Monto(n int) decimal.Decimal {
	return m[n-1]
}

// ratioGroups lists, for factors 8 to 16, which amounts are added before dividing by
// monto_1.
var ratioGroups = map[int][]int{
	8:  {8, 9, 10, 11, 12, 13},
	9:  {14, 15},
	10: {16, 17, 18},
	11: {19, 20, 21},
	12: {22, 23},
	13: {24},
	14: {25},
	15: {26},
	16: {27, 28},
}

// CalculateFactors converts declared amounts into factors. Factors 8 to 16 are ratios
// over monto_1 and factors 17 to 29 carry their amount through. A zero monto_1 yields
// zero factors. Factors 1 to 7 are not derived and stay zero.
func CalculateFactors(m Montos) ([calificacion.FactorCount]calificacion.Factor, error) {
	var out [calificacion.FactorCount]calificacion.Factor
	for i := range out {
		out[i] = calificacion.ZeroFactor
	}
	divisor := m.Monto(1)
	if divisor.IsZero() {
		return out, nil
	}

	sum := decimal.Zero
	for n := 8; n <= 16; n++ {
		total := decimal.Zero
		for _, k := range ratioGroups[n] {
			total = total.Add(m.Monto(k))
		}
		f := total.DivRound(divisor, calificacion.FactorScale)
		sum = sum.Add(f)
		out[n-1] = calificacion.FactorFromDecimal(f)
	}
	for n := 17; n <= calificacion.FactorCount; n++ {
		out[n-1] = calificacion.FactorFromDecimal(m.Monto(n).Round(calificacion.FactorScale))
	}

	if sum.Round(4).GreaterThan(decimal.NewFromInt(1)) {
		return out, fmt.Errorf("%w (%s)", ErrFactorSum, sum.StringFixed(4))
	}
	return out, nil
}

// ParseMonto reads an amount from CSV text. Empty text is zero and a decimal comma is
// accepted. Amounts are not bound to the factor scale.
func ParseMonto(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return decimal.Zero, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("monto %q: %w", text, err)
	}
	return d, nil
}
