package calificacion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bulk endpoints, relative to the API base URL.
const (
	PreviewPath  = CollectionPath + "previsualizar-csv/"
	BulkLoadPath = CollectionPath + "carga-masiva/"

	// UploadField is the multipart field carrying the CSV file.
	UploadField = "file"

	// PreviewRows is how many data rows the preview returns after the header.
	PreviewRows = 5
)

// Preview is the backend's proposed import: the header row followed by sample rows.
type Preview struct {
	Rows [][]Cell `json:"preview"`
}

// Cell is an opaque preview value, rendered as received.
type Cell struct {
	raw json.RawMessage
}

// TextCell builds a string cell.
func TextCell(s string) Cell {
	b, _ := json.Marshal(s)
	return Cell{raw: b}
}

// ValueCell builds a cell from CSV text: numbers stay numbers, empty text is null and
// anything else is a string.
func ValueCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{raw: json.RawMessage("null")}
	}
	if isNumber(s) {
		return Cell{raw: json.RawMessage(s)}
	}
	return TextCell(s)
}

func isNumber(s string) bool {
	var v json.Number
	return json.Unmarshal([]byte(s), &v) == nil
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

func (c *Cell) UnmarshalJSON(data []byte) error {
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// String returns strings unquoted, null as empty and any other JSON literal verbatim.
func (c Cell) String() string {
	if len(c.raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(c.raw))
	if text == "null" {
		return ""
	}
	return text
}

// BulkResult is the commit summary.
type BulkResult struct {
	Status       string   `json:"status,omitempty"`
	Creados      int      `json:"creados"`
	Actualizados int      `json:"actualizados"`
	Errores      []string `json:"errores,omitempty"`
}

// UnmarshalJSON accepts errores as a list of strings or objects, or as a single value;
// each entry becomes one line of text.
func (b *BulkResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status       string          `json:"status"`
		Creados      int             `json:"creados"`
		Actualizados int             `json:"actualizados"`
		Errores      json.RawMessage `json:"errores"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*b = BulkResult{
		Status:       wire.Status,
		Creados:      wire.Creados,
		Actualizados: wire.Actualizados,
		Errores:      errorLines(wire.Errores),
	}
	return nil
}

func errorLines(raw json.RawMessage) []string {
	var cells []Cell
	if err := json.Unmarshal(raw, &cells); err != nil {
		cells = []Cell{{raw: raw}}
	}
	var lines []string
	for _, c := range cells {
		if s := c.String(); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// Summary is a one line description for status bars.
func (b BulkResult) Summary() string {
	s := fmt.Sprintf("%d creadas, %d actualizadas", b.Creados, b.Actualizados)
	if len(b.Errores) > 0 {
		s += fmt.Sprintf(", %d filas con error", len(b.Errores))
	}
	return s
}
