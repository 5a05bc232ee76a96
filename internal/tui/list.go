package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// factorWindow is how many factor columns the list shows at once.
const factorWindow = 4

// listColumns are the fixed columns ahead of the factor window.
var listColumns = []string{
	calificacion.FieldInstrumento,
	calificacion.FieldFechaPago,
	calificacion.FieldOrigen,
	calificacion.FieldMercado,
	calificacion.FieldPeriodo,
}

// filter inputs, in query order
const (
	filterMercado = iota
	filterOrigen
	filterPeriodo
	filterCount
)

type listState struct {
	records   []calificacion.Record
	cursor    int
	factorCol int
	loaded    bool

	inputs [filterCount]textinput.Model
	// focus is the focused filter input, or -1 while the table has the keyboard.
	focus  int
	filter calificacion.Filter
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 100
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func newListState() listState {
	s := listState{factorCol: 8, focus: -1}
	s.inputs[filterMercado] = newInput("mercado")
	s.inputs[filterOrigen] = newInput("origen")
	s.inputs[filterPeriodo] = newInput("periodo")
	return s
}

func (s *listState) setRecords(list []calificacion.Record) {
	s.records = list
	s.loaded = true
	if s.cursor >= len(list) {
		s.cursor = len(list) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *listState) selected() (calificacion.Record, bool) {
	if s.cursor < 0 || s.cursor >= len(s.records) {
		return calificacion.Record{}, false
	}
	return s.records[s.cursor], true
}

// inputFilter reads the filter the inputs currently describe.
func (s *listState) inputFilter() calificacion.Filter {
	return calificacion.Filter{
		Mercado: strings.TrimSpace(s.inputs[filterMercado].Value()),
		Origen:  strings.TrimSpace(s.inputs[filterOrigen].Value()),
		Periodo: strings.TrimSpace(s.inputs[filterPeriodo].Value()),
	}
}

func (s *listState) focusInput(i int) {
	for j := range s.inputs {
		s.inputs[j].Blur()
	}
	s.focus = i
	if i >= 0 {
		s.inputs[i].Focus()
	}
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.list.focus >= 0 {
		return a.handleFilterKey(msg)
	}
	k := a.keys
	switch {
	case key.Matches(msg, k.Quit):
		return a, tea.Quit
	case key.Matches(msg, k.Up):
		if a.list.cursor > 0 {
			a.list.cursor--
		}
	case key.Matches(msg, k.Down):
		if a.list.cursor < len(a.list.records)-1 {
			a.list.cursor++
		}
	case key.Matches(msg, k.Left):
		if a.list.factorCol > 1 {
			a.list.factorCol--
		}
	case key.Matches(msg, k.Right):
		if a.list.factorCol < calificacion.FactorCount-factorWindow+1 {
			a.list.factorCol++
		}
	case key.Matches(msg, k.Filter):
		a.list.focusInput(filterMercado)
	case key.Matches(msg, k.Clear):
		return a, a.clearFilter()
	case key.Matches(msg, k.Reload):
		return a, a.loadRecords()
	case key.Matches(msg, k.New):
		return a, a.openForm(calificacion.NewSentinel, nil)
	case key.Matches(msg, k.Edit):
		rec, ok := a.list.selected()
		if !ok {
			return a, nil
		}
		return a, a.openForm(rec.ID, &rec)
	case key.Matches(msg, k.Delete):
		if _, ok := a.list.selected(); ok {
			a.modal = modalConfirmDelete
		}
	case key.Matches(msg, k.Import):
		a.state = viewImport
		a.status = ""
		return a, a.upload.path.Focus()
	case key.Matches(msg, k.History):
		a.state = viewHistory
		a.history = nil
		return a, a.loadHistory()
	}
	return a, nil
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := a.keys
	switch {
	case key.Matches(msg, k.Apply):
		a.list.focusInput(-1)
		return a, a.applyFilter()
	case key.Matches(msg, k.Back):
		a.list.focusInput(-1)
		return a, nil
	case key.Matches(msg, k.Next):
		a.list.focusInput((a.list.focus + 1) % filterCount)
		return a, nil
	case key.Matches(msg, k.Prev):
		a.list.focusInput((a.list.focus + filterCount - 1) % filterCount)
		return a, nil
	}
	var cmd tea.Cmd
	a.list.inputs[a.list.focus], cmd = a.list.inputs[a.list.focus].Update(msg)
	return a, cmd
}

func (a *App) applyFilter() tea.Cmd {
	a.list.filter = a.list.inputFilter()
	a.list.cursor = 0
	return a.loadRecords()
}

func (a *App) clearFilter() tea.Cmd {
	for i := range a.list.inputs {
		a.list.inputs[i].Reset()
	}
	a.list.focusInput(-1)
	a.list.filter = calificacion.Filter{}
	a.list.cursor = 0
	return a.loadRecords()
}

// listRows renders records as table rows, values verbatim.
func (a *App) listRows() (headers []string, rows [][]string) {
	for _, name := range listColumns {
		f, _ := calificacion.Lookup(name)
		headers = append(headers, f.Label)
	}
	last := min(a.list.factorCol+factorWindow-1, calificacion.FactorCount)
	for n := a.list.factorCol; n <= last; n++ {
		headers = append(headers, calificacion.FactorName(n))
	}
	for _, r := range a.list.records {
		row := make([]string, 0, len(headers))
		for _, name := range listColumns {
			row = append(row, r.Text(name))
		}
		for n := a.list.factorCol; n <= last; n++ {
			row = append(row, r.Factor(n).String())
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func (a *App) renderList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Calificaciones"))
	b.WriteString("\n\n")
	b.WriteString(a.renderFilters())
	b.WriteString("\n\n")

	switch {
	case !a.list.loaded:
		b.WriteString("Cargando...\n")
	case len(a.list.records) == 0:
		b.WriteString("No hay calificaciones.\n")
	default:
		headers, rows := a.listRows()
		cur := a.list.cursor
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle.Padding(0, 1)
				case row == cur:
					return selectedStyle.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
		b.WriteString(t.Render())
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%d registros  factores %d-%d de %d\n",
			len(a.list.records), a.list.factorCol,
			min(a.list.factorCol+factorWindow-1, calificacion.FactorCount), calificacion.FactorCount))
	}
	k := a.keys
	if a.list.focus >= 0 {
		b.WriteString(helpStyle.Render(helpLine(k.Apply, k.Next, k.Back)))
		return b.String()
	}
	b.WriteString(helpStyle.Render(helpLine(k.New, k.Edit, k.Delete, k.Import, k.History, k.Filter, k.Clear, k.Quit)))
	return b.String()
}

func (a *App) renderFilters() string {
	labels := [filterCount]string{"Mercado", "Origen", "Período"}
	parts := make([]string, 0, filterCount)
	for i, in := range a.list.inputs {
		label := labels[i]
		if a.list.focus == i {
			label = selectedStyle.Render(label)
		}
		parts = append(parts, label+": "+in.View())
	}
	return strings.Join(parts, "   ")
}
