package calificacion

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Field names as the backend serializes them.
const (
	FieldID           = "id"
	FieldMercado      = "mercado"
	FieldOrigen       = "origen"
	FieldPeriodo      = "periodo"
	FieldInstrumento  = "instrumento"
	FieldFechaPago    = "fecha_pago"
	FieldEjercicio    = "ejercicio"
	FieldIsBolsa      = "is_bolsa"
	FieldBroker       = "broker"
	FieldCalificacion = "calificacion"
)

// Kind is the semantic type of a field.
type Kind string

const (
	KindID      Kind = "id"
	KindText    Kind = "text"
	KindDate    Kind = "date"
	KindInt     Kind = "int"
	KindBool    Kind = "bool"
	KindDecimal Kind = "decimal"
)

// Field describes one record attribute for forms, tables and CSV headers.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	ReadOnly bool
}

// Fields is the full record schema in display order.
var Fields = buildFields()

// Markets are the mercado values the backend accepts.
var Markets = []string{"acciones", "cfi", "fondos_mutuos"}

func buildFields() []Field {
	fs := []Field{
		{Name: FieldID, Label: "ID", Kind: KindID, ReadOnly: true},
		{Name: FieldInstrumento, Label: "Instrumento", Kind: KindText, Required: true},
		{Name: FieldFechaPago, Label: "Fecha de pago", Kind: KindDate, Required: true},
		{Name: FieldMercado, Label: "Mercado", Kind: KindText},
		{Name: FieldOrigen, Label: "Origen", Kind: KindText},
		{Name: FieldPeriodo, Label: "Período comercial", Kind: KindText},
		{Name: FieldEjercicio, Label: "Ejercicio", Kind: KindInt},
		{Name: FieldIsBolsa, Label: "Bolsa", Kind: KindBool},
		{Name: FieldCalificacion, Label: "Calificación", Kind: KindText},
		{Name: FieldBroker, Label: "Corredor", Kind: KindText, ReadOnly: true},
	}
	for i := 1; i <= FactorCount; i++ {
		fs = append(fs, Field{
			Name:     FactorName(i),
			Label:    fmt.Sprintf("Factor %d", i),
			Kind:     KindDecimal,
			Required: i == 8,
		})
	}
	return fs
}

// Lookup returns the field with the given name.
func Lookup(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldErrors maps a field name to its messages. It is shared by client-side checks and
// by decoded backend validation payloads.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	return strings.Join(fe.Lines(), "; ")
}

// Lines renders one "field: message" line per field, sorted by field name.
func (fe FieldErrors) Lines() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, strings.Join(fe[k], ", ")))
	}
	return out
}

func (fe FieldErrors) add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

var structFieldNames = map[string]string{
	"Mercado":     FieldMercado,
	"Origen":      FieldOrigen,
	"Instrumento": FieldInstrumento,
	"FechaPago":   FieldFechaPago,
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
			if name, ok := structFieldNames[sf.Name]; ok {
				return name
			}
			return sf.Name
		})
	})
	return validate
}

// CheckRequired reports required fields whose input text is blank.
func CheckRequired(values map[string]string) FieldErrors {
	v := validatorInstance()
	errs := FieldErrors{}
	for _, f := range Fields {
		if !f.Required {
			continue
		}
		if err := v.Var(strings.TrimSpace(values[f.Name]), "required"); err != nil {
			errs.add(f.Name, "este campo es obligatorio")
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate runs the struct rules of a record.
func Validate(r Record) FieldErrors {
	err := validatorInstance().Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"non_field_errors": {err.Error()}}
	}
	errs := FieldErrors{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			errs.add(fe.Field(), "este campo es obligatorio")
		case "datetime":
			errs.add(fe.Field(), "formato de fecha inválido, use AAAA-MM-DD")
		case "max":
			errs.add(fe.Field(), fmt.Sprintf("máximo %s caracteres", fe.Param()))
		default:
			errs.add(fe.Field(), fe.Error())
		}
	}
	return errs
}
