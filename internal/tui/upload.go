package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"

	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

type uploadState struct {
	path textinput.Model

	preview     *calificacion.Preview
	previewPath string

	previewing bool
	committing bool
}

func newUploadState() uploadState {
	in := newInput("ruta del archivo CSV")
	in.CharLimit = 1024
	return uploadState{path: in}
}

func (s *uploadState) filePath() string {
	p := strings.TrimSpace(s.path.Value())
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// readUpload reads the file fresh for every request.
func readUpload(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("indique la ruta del archivo")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer %s: %w", path, err)
	}
	return content, nil
}

func (a *App) handleImportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.upload.path.Blur()
		a.upload.preview = nil
		a.state = viewList
		return a, nil
	case key.Matches(msg, a.keys.Preview):
		return a, a.previewUpload()
	case key.Matches(msg, a.keys.Submit):
		return a, a.commitUpload()
	}
	var cmd tea.Cmd
	a.upload.path, cmd = a.upload.path.Update(msg)
	return a, cmd
}

func (a *App) previewUpload() tea.Cmd {
	if a.upload.previewing {
		return nil
	}
	a.upload.previewing = true
	a.status = "Previsualizando..."
	path := a.upload.filePath()
	return func() tea.Msg {
		content, err := readUpload(path)
		if err != nil {
			return failedMsg{op: opPreview, err: err}
		}
		p, err := a.backend.PreviewCSV(a.ctx, filepath.Base(path), content)
		if err != nil {
			return failedMsg{op: opPreview, err: err}
		}
		return previewMsg{preview: p, path: path}
	}
}

// commitUpload does not depend on a prior preview.
func (a *App) commitUpload() tea.Cmd {
	if a.upload.committing {
		return nil
	}
	a.upload.committing = true
	a.status = "Cargando archivo..."
	path := a.upload.filePath()
	return func() tea.Msg {
		name := filepath.Base(path)
		content, err := readUpload(path)
		if err != nil {
			return failedMsg{op: opUpload, err: err}
		}
		res, err := a.backend.BulkLoad(a.ctx, name, content)
		a.journal.Record(a.ctx, repository.ActionBulkLoad, "", name, err)
		if err != nil {
			return failedMsg{op: opUpload, err: err}
		}
		return uploadedMsg{result: res}
	}
}

// uploaded returns to the list only when the import screen is still showing.
func (a *App) uploaded(res calificacion.BulkResult) tea.Cmd {
	a.upload.path.Blur()
	a.upload.path.Reset()
	a.upload.preview = nil
	a.upload.previewPath = ""
	if a.state == viewImport {
		a.state = viewList
	}
	a.log.WithFields(logrus.Fields{
		"creados":      res.Creados,
		"actualizados": res.Actualizados,
		"errores":      len(res.Errores),
	}).Info("bulk load committed")
	cmd := a.loadRecords()
	status := res.Status
	if status == "" {
		status = "Carga completada"
	}
	a.status = status + ": " + res.Summary()
	if len(res.Errores) > 0 {
		a.alert = alert{title: status, lines: res.Errores}
		a.modal = modalAlert
	}
	return cmd
}

func (a *App) renderImport() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Carga masiva"))
	b.WriteString("\n\n")
	b.WriteString("Archivo: " + a.upload.path.View())
	b.WriteString("\n\n")
	if p := a.upload.preview; p != nil {
		b.WriteString(fmt.Sprintf("Vista previa de %s\n", a.upload.previewPath))
		b.WriteString(renderPreview(*p))
		b.WriteString("\n\n")
	}
	k := a.keys
	b.WriteString(helpStyle.Render(helpLine(k.Preview, k.Submit, k.Back)))
	return b.String()
}

// renderPreview shows the first row as the header and every cell as received.
func renderPreview(p calificacion.Preview) string {
	if len(p.Rows) == 0 {
		return "(vacío)"
	}
	width := 0
	for _, row := range p.Rows {
		width = max(width, len(row))
	}
	text := func(row []calificacion.Cell) []string {
		out := make([]string, width)
		for i, c := range row {
			out[i] = c.String()
		}
		return out
	}
	rows := make([][]string, 0, len(p.Rows)-1)
	for _, row := range p.Rows[1:] {
		rows = append(rows, text(row))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(text(p.Rows[0])...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Render()
}
