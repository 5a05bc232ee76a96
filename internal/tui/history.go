package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/brokernuam/calificaciones/internal/database/repository"
)

func (a *App) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back), key.Matches(msg, a.keys.Quit):
		a.state = viewList
	case key.Matches(msg, a.keys.Reload):
		return a, a.loadHistory()
	}
	return a, nil
}

func (a *App) renderHistory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Historial"))
	b.WriteString("\n\n")
	if len(a.history) == 0 {
		b.WriteString("Sin actividad registrada.\n\n")
	} else {
		rows := make([][]string, 0, len(a.history))
		for _, e := range a.history {
			rows = append(rows, []string{
				e.RequestedAt.Local().Format("2006-01-02 15:04:05"),
				e.Action,
				e.RecordID,
				e.Instrumento,
				e.Outcome,
				e.Detail,
			})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Fecha", "Acción", "ID", "Instrumento", "Resultado", "Detalle").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				s := lipgloss.NewStyle().Padding(0, 1)
				switch {
				case row == table.HeaderRow:
					return headerStyle.Padding(0, 1)
				case col == 4 && a.history[row].Outcome == repository.OutcomeError:
					return errorStyle.Padding(0, 1)
				}
				return s
			})
		b.WriteString(t.Render())
		b.WriteString("\n\n")
	}
	k := a.keys
	b.WriteString(helpStyle.Render(helpLine(k.Reload, k.Back)))
	return b.String()
}
