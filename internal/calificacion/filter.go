package calificacion

import (
	"net/url"
	"strings"
)

// CollectionPath is the resource collection path relative to the API base URL.
const CollectionPath = "calificaciones/"

// Filter narrows the collection. Empty fields are ignored; the rest are ANDed.
type Filter struct {
	Mercado string
	Origen  string
	Periodo string
}

// IsZero reports whether no field is set.
func (f Filter) IsZero() bool {
	return f.Query() == ""
}

// Query builds key=value pairs for the non-empty fields, in the order mercado, origen,
// periodo, joined with "&".
func (f Filter) Query() string {
	pairs := make([]string, 0, 3)
	for _, kv := range [][2]string{
		{FieldMercado, f.Mercado},
		{FieldOrigen, f.Origen},
		{FieldPeriodo, f.Periodo},
	} {
		v := strings.TrimSpace(kv[1])
		if v == "" {
			continue
		}
		pairs = append(pairs, kv[0]+"="+url.QueryEscape(v))
	}
	return strings.Join(pairs, "&")
}

// Path returns the list path with the query attached when there is one.
func (f Filter) Path() string {
	if q := f.Query(); q != "" {
		return CollectionPath + "?" + q
	}
	return CollectionPath
}

// Matches reports whether r satisfies every non-empty field exactly.
func (f Filter) Matches(r Record) bool {
	if v := strings.TrimSpace(f.Mercado); v != "" && r.Mercado != v {
		return false
	}
	if v := strings.TrimSpace(f.Origen); v != "" && r.Origen != v {
		return false
	}
	if v := strings.TrimSpace(f.Periodo); v != "" && r.Periodo != v {
		return false
	}
	return true
}

// FilterFromQuery is the inverse of Query, used by the development backend.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Mercado: q.Get(FieldMercado),
		Origen:  q.Get(FieldOrigen),
		Periodo: q.Get(FieldPeriodo),
	}
}

// ItemPath returns the path of a single record.
func ItemPath(id string) string {
	return CollectionPath + url.PathEscape(id) + "/"
}
