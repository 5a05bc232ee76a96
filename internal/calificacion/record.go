package calificacion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NewSentinel is the identifier that selects create mode in routes and forms.
const NewSentinel = "nuevo"

// Record is one calificación as exchanged with the backend.
//
// Keys the backend sends that are not modeled here are kept in extra and written back
// verbatim, so a full replacement update never drops data.
type Record struct {
	ID           string
	Mercado      string `validate:"omitempty,max=20"`
	Origen       string `validate:"omitempty,max=50"`
	Periodo      string
	Instrumento  string `validate:"required,max=100"`
	FechaPago    string `validate:"required,datetime=2006-01-02"`
	Ejercicio    int
	IsBolsa      bool
	Broker       string
	Calificacion string
	Factores     [FactorCount]Factor

	idJSON json.RawMessage
	extra  map[string]json.RawMessage
}

// Blank returns the zero-valued record used by the create form.
func Blank() Record {
	var r Record
	for i := range r.Factores {
		r.Factores[i] = ZeroFactor
	}
	return r
}

// Factor returns factor n (1-based).
func (r Record) Factor(n int) Factor {
	if n < 1 || n > FactorCount {
		return ZeroFactor
	}
	return r.Factores[n-1]
}

// SetFactor assigns factor n (1-based).
func (r *Record) SetFactor(n int, f Factor) {
	if n < 1 || n > FactorCount {
		return
	}
	r.Factores[n-1] = f
}

// WithoutID returns a copy with the identifier removed, as sent on create.
func (r Record) WithoutID() Record {
	r.ID = ""
	r.idJSON = nil
	return r
}

// AssignID returns a copy carrying the identifier the store allocated. Numeric ids are
// serialized as JSON numbers.
func (r Record) AssignID(id int64) Record {
	r.ID = strconv.FormatInt(id, 10)
	r.idJSON = json.RawMessage(r.ID)
	return r
}

// Extra returns the unmodeled keys the record carries.
func (r Record) Extra() map[string]json.RawMessage {
	return r.extra
}

// Text returns the display text of the named field.
func (r Record) Text(name string) string {
	switch name {
	case FieldID:
		return r.ID
	case FieldMercado:
		return r.Mercado
	case FieldOrigen:
		return r.Origen
	case FieldPeriodo:
		return r.Periodo
	case FieldInstrumento:
		return r.Instrumento
	case FieldFechaPago:
		return r.FechaPago
	case FieldEjercicio:
		if r.Ejercicio == 0 {
			return ""
		}
		return strconv.Itoa(r.Ejercicio)
	case FieldIsBolsa:
		return strconv.FormatBool(r.IsBolsa)
	case FieldBroker:
		return r.Broker
	case FieldCalificacion:
		return r.Calificacion
	}
	if n, ok := factorIndex(name); ok {
		return r.Factor(n).String()
	}
	return ""
}

// Set updates exactly one field from its text form.
func (r *Record) Set(name, text string) error {
	switch name {
	case FieldID, FieldBroker:
		return fmt.Errorf("%s is read-only", name)
	case FieldMercado:
		r.Mercado = text
	case FieldOrigen:
		r.Origen = text
	case FieldPeriodo:
		r.Periodo = text
	case FieldInstrumento:
		r.Instrumento = text
	case FieldFechaPago:
		r.FechaPago = strings.TrimSpace(text)
	case FieldEjercicio:
		s := strings.TrimSpace(text)
		if s == "" {
			r.Ejercicio = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("ejercicio: %w", err)
		}
		r.Ejercicio = n
	case FieldIsBolsa:
		s := strings.ToLower(strings.TrimSpace(text))
		switch s {
		case "", "false", "no", "n", "0":
			r.IsBolsa = false
		case "true", "si", "sí", "s", "yes", "y", "1":
			r.IsBolsa = true
		default:
			return fmt.Errorf("is_bolsa: invalid value %q", text)
		}
	case FieldCalificacion:
		r.Calificacion = text
	default:
		n, ok := factorIndex(name)
		if !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		f, err := ParseFactor(text)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.SetFactor(n, f)
	}
	return nil
}

func factorIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "factor_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > FactorCount {
		return 0, false
	}
	return n, true
}

// MarshalJSON writes the modeled fields over the retained unknown keys. An empty id is
// omitted.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.extra)+len(Fields))
	for k, v := range r.extra {
		out[k] = v
	}
	put := func(k string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", k, err)
		}
		out[k] = b
		return nil
	}
	switch {
	case len(r.idJSON) > 0:
		out[FieldID] = r.idJSON
	case r.ID != "":
		if err := put(FieldID, r.ID); err != nil {
			return nil, err
		}
	}
	fields := []struct {
		k string
		v any
	}{
		{FieldMercado, r.Mercado},
		{FieldOrigen, r.Origen},
		{FieldPeriodo, r.Periodo},
		{FieldInstrumento, r.Instrumento},
		{FieldFechaPago, nullIfEmpty(r.FechaPago)},
		{FieldEjercicio, r.Ejercicio},
		{FieldIsBolsa, r.IsBolsa},
		{FieldBroker, r.Broker},
		{FieldCalificacion, r.Calificacion},
	}
	for _, f := range fields {
		if err := put(f.k, f.v); err != nil {
			return nil, err
		}
	}
	for i, f := range r.Factores {
		if err := put(FactorName(i+1), f); err != nil {
			return nil, err
		}
	}
	return marshalSorted(out)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalSorted(m map[string]json.RawMessage) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(m[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads modeled keys into fields and keeps everything else.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next := Blank()
	next.extra = map[string]json.RawMessage{}
	for k, v := range raw {
		if err := next.decodeField(k, v); err != nil {
			return err
		}
	}
	if len(next.extra) == 0 {
		next.extra = nil
	}
	*r = next
	return nil
}

func (r *Record) decodeField(k string, v json.RawMessage) error {
	isNull := bytes.Equal(bytes.TrimSpace(v), []byte("null"))
	str := func(dst *string) error {
		if isNull {
			*dst = ""
			return nil
		}
		return json.Unmarshal(v, dst)
	}
	switch k {
	case FieldID:
		if isNull {
			return nil
		}
		r.idJSON = append(json.RawMessage(nil), v...)
		id, err := idText(v)
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	case FieldMercado:
		return str(&r.Mercado)
	case FieldOrigen:
		return str(&r.Origen)
	case FieldPeriodo:
		return str(&r.Periodo)
	case FieldInstrumento:
		return str(&r.Instrumento)
	case FieldFechaPago:
		return str(&r.FechaPago)
	case FieldBroker:
		// the backend may send the broker as a label or as a foreign key
		if isNull {
			return nil
		}
		id, err := idText(v)
		if err != nil {
			return fmt.Errorf("broker: %w", err)
		}
		r.Broker = id
		return nil
	case FieldCalificacion:
		return str(&r.Calificacion)
	case FieldEjercicio:
		if isNull {
			return nil
		}
		return json.Unmarshal(v, &r.Ejercicio)
	case FieldIsBolsa:
		if isNull {
			return nil
		}
		return json.Unmarshal(v, &r.IsBolsa)
	}
	if n, ok := factorIndex(k); ok {
		var f Factor
		if err := f.UnmarshalJSON(v); err != nil {
			return err
		}
		r.SetFactor(n, f)
		return nil
	}
	r.extra[k] = append(json.RawMessage(nil), v...)
	return nil
}

func idText(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("decode id %s: %w", v, err)
	}
	return n.String(), nil
}
