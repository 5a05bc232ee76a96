package testdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// Kind selects which bulk format a sample file uses.
type Kind string

const (
	KindMontos   Kind = "montos"
	KindFactores Kind = "factores"
)

// WriteSample writes a bulk load CSV with rows records. Montos files carry monto_1..29 and
// keep factors 8 to 16 below 1; factores files carry factor_8..16 directly.
func WriteSample(w io.Writer, rng *rand.Rand, kind Kind, rows int) error {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	cw := csv.NewWriter(w)

	header := []string{calificacion.FieldInstrumento, calificacion.FieldFechaPago, calificacion.FieldMercado}
	switch kind {
	case KindMontos:
		for n := 1; n <= calificacion.FactorCount; n++ {
			header = append(header, fmt.Sprintf("monto_%d", n))
		}
	case KindFactores:
		for n := 8; n <= 16; n++ {
			header = append(header, calificacion.FactorName(n))
		}
	default:
		return fmt.Errorf("testdata: unknown kind %q", kind)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		month := time.Month(rng.Intn(12) + 1)
		// day 0 of the next month is the last day of month
		pago := time.Date(2024, month+1, 0, 0, 0, 0, 0, time.UTC)
		row := []string{
			fmt.Sprintf("BONO-%03d", i+1),
			pago.Format("2006-01-02"),
			calificacion.Markets[rng.Intn(len(calificacion.Markets))],
		}
		if kind == KindMontos {
			row = append(row, montos(rng)...)
		} else {
			row = append(row, factores(rng)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func montos(rng *rand.Rand) []string {
	total := rng.Int63n(900_000_00) + 100_000_00
	// montos 8..28 feed the ratio factors; together they stay under 90% of monto_1
	share := total * 9 / 10 / 21
	out := make([]string, calificacion.FactorCount)
	for n := 1; n <= calificacion.FactorCount; n++ {
		var cents int64
		switch {
		case n == 1:
			cents = total
		case n >= 8 && n <= 28:
			cents = rng.Int63n(share + 1)
		default:
			cents = rng.Int63n(total / 10)
		}
		out[n-1] = decimal.New(cents, -2).StringFixed(2)
	}
	return out
}

func factores(rng *rand.Rand) []string {
	out := make([]string, 0, 9)
	for n := 8; n <= 16; n++ {
		// nine factors below 0.1 each never exceed 1 together
		f := decimal.New(rng.Int63n(100_000_000), -calificacion.FactorScale)
		out = append(out, f.StringFixed(calificacion.FactorScale))
	}
	return out
}
