package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Up        key.Binding
	Down      key.Binding
	Left      key.Binding
	Right     key.Binding
	Edit      key.Binding
	Delete    key.Binding
	New       key.Binding
	Import    key.Binding
	History   key.Binding
	Filter    key.Binding
	Clear     key.Binding
	Reload    key.Binding
	Apply     key.Binding
	Next      key.Binding
	Prev      key.Binding
	Submit    key.Binding
	Preview   key.Binding
	Back      key.Binding
	Confirm   key.Binding
	Deny      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "salir")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "salir")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "subir")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "bajar")),
		Left:      key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "factores")),
		Right:     key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "factores")),
		Edit:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "modificar")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "eliminar")),
		New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "nueva")),
		Import:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "carga masiva")),
		History:   key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "historial")),
		Filter:    key.NewBinding(key.WithKeys("/", "f"), key.WithHelp("/", "filtrar")),
		Clear:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "limpiar filtros")),
		Reload:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recargar")),
		Apply:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "aplicar")),
		Next:      key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "siguiente")),
		Prev:      key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "anterior")),
		Submit:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "guardar")),
		Preview:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "previsualizar")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "volver")),
		Confirm:   key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "sí")),
		Deny:      key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}

// helpLine renders "key action" pairs for a footer.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, "["+h.Key+"] "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
