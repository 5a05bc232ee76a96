package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/brokernuam/calificaciones/internal/database/repository"
)

// alert is a blocking message. It holds the keyboard until dismissed.
type alert struct {
	title string
	lines []string
}

func (a *App) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalAlert:
		if msg.String() == "enter" || msg.String() == "esc" {
			a.modal = modalNone
			a.alert = alert{}
		}
	case modalConfirmDelete:
		switch {
		case key.Matches(msg, a.keys.Confirm):
			a.modal = modalNone
			return a, a.deleteSelected()
		case key.Matches(msg, a.keys.Deny):
			a.modal = modalNone
		}
	}
	return a, nil
}

func (a *App) deleteSelected() tea.Cmd {
	rec, ok := a.list.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		err := a.backend.DeleteCalificacion(a.ctx, rec.ID)
		a.journal.Record(a.ctx, repository.ActionDelete, rec.ID, rec.Instrumento, err)
		if err != nil {
			return failedMsg{op: opDelete, err: err}
		}
		return deletedMsg{id: rec.ID}
	}
}

func (a *App) renderModal() string {
	var b strings.Builder
	switch a.modal {
	case modalAlert:
		b.WriteString(errorStyle.Render(a.alert.title))
		for _, line := range a.alert.lines {
			b.WriteString("\n  " + line)
		}
		b.WriteString("\n\n" + helpStyle.Render("[enter] aceptar"))
	case modalConfirmDelete:
		rec, _ := a.list.selected()
		b.WriteString("¿Eliminar la calificación " + rec.ID + " (" + rec.Instrumento + ")?")
		b.WriteString("\n\n" + helpStyle.Render(helpLine(a.keys.Confirm, a.keys.Deny)))
	}
	return modalStyle.Render(b.String())
}
