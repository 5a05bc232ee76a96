package calificacion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FactorScale is the number of fractional digits the backend stores for every factor.
const FactorScale = 9

// FactorCount is the number of numbered factor fields (factor_1 .. factor_29).
const FactorCount = 29

// ErrPrecision is returned when a factor carries more fractional digits than FactorScale.
var ErrPrecision = errors.New("factor exceeds 9 decimal places")

// Factor is a fixed-scale decimal value. It is never rounded: user input that does not fit
// the scale is rejected, and backend values with more digits are kept as received.
type Factor struct {
	d decimal.Decimal
}

// ZeroFactor is the blank value used for new records.
var ZeroFactor = Factor{d: decimal.Zero}

// ParseFactor parses user or CSV text. A decimal comma is accepted. Empty text is zero.
func ParseFactor(text string) (Factor, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return ZeroFactor, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Factor{}, fmt.Errorf("parse factor %q: %w", text, err)
	}
	if d.Exponent() < -FactorScale && !d.Equal(d.Truncate(FactorScale)) {
		return Factor{}, fmt.Errorf("%q: %w", text, ErrPrecision)
	}
	return Factor{d: d}, nil
}

// MustFactor is ParseFactor for literals in tests and seed data.
func MustFactor(text string) Factor {
	f, err := ParseFactor(text)
	if err != nil {
		panic(err)
	}
	return f
}

// FactorFromDecimal wraps a computed decimal, truncating nothing; callers own the scale.
func FactorFromDecimal(d decimal.Decimal) Factor {
	return Factor{d: d}
}

// Decimal returns the underlying value.
func (f Factor) Decimal() decimal.Decimal { return f.d }

// IsZero reports whether the factor is zero.
func (f Factor) IsZero() bool { return f.d.IsZero() }

// String renders the factor with FactorScale fractional digits, or with every digit the
// value carries when it holds more.
func (f Factor) String() string {
	places := int32(FactorScale)
	if exp := -f.d.Exponent(); exp > places && !f.d.Equal(f.d.Truncate(places)) {
		places = exp
	}
	return f.d.StringFixed(places)
}

func (f Factor) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts JSON numbers, strings and null (zero). Numbers are decoded from
// their literal text so no binary float round trip happens.
func (f *Factor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ZeroFactor
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		if strings.TrimSpace(text) == "" {
			*f = ZeroFactor
			return nil
		}
		return fmt.Errorf("decode factor %s: %w", data, err)
	}
	f.d = d
	return nil
}

// FactorName returns the JSON field name of factor n (1-based).
func FactorName(n int) string {
	return fmt.Sprintf("factor_%d", n)
}
