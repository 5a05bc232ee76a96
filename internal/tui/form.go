package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database/repository"
)

// formFactorRows is how many factor inputs each factor column holds.
const formFactorRows = 10

// formState is one mounted form. A new instance is built every time the form opens.
type formState struct {
	seq    int
	id     string
	create bool

	// record is the last loaded state plus every accepted edit. It keeps keys the form
	// does not model so an update sends them back.
	record calificacion.Record

	fields  []calificacion.Field
	inputs  []textinput.Model
	focus   int
	invalid map[string]string

	loaded  bool
	loading bool
	saving  bool
}

func newFormState(seq int, id string) *formState {
	f := &formState{
		seq:     seq,
		id:      id,
		create:  id == calificacion.NewSentinel,
		invalid: map[string]string{},
	}
	for _, fd := range calificacion.Fields {
		if fd.ReadOnly {
			continue
		}
		f.fields = append(f.fields, fd)
		in := newInput(fd.Label)
		if fd.Kind == calificacion.KindDate {
			in.Placeholder = "AAAA-MM-DD"
		}
		f.inputs = append(f.inputs, in)
	}
	f.inputs[0].Focus()
	return f
}

// load replaces every field with rec.
func (f *formState) load(rec calificacion.Record) {
	f.record = rec
	for i, fd := range f.fields {
		f.inputs[i].SetValue(rec.Text(fd.Name))
	}
	f.invalid = map[string]string{}
	f.loading = false
	f.loaded = true
}

// values returns the input text keyed by field name.
func (f *formState) values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for i, fd := range f.fields {
		out[fd.Name] = f.inputs[i].Value()
	}
	return out
}

// Value returns the text of the named input.
func (f *formState) Value(name string) string {
	for i, fd := range f.fields {
		if fd.Name == name {
			return f.inputs[i].Value()
		}
	}
	return ""
}

// set applies one edited input to the record. Text that does not parse is kept in the
// input and reported on submit.
func (f *formState) set(i int) {
	name := f.fields[i].Name
	if err := f.record.Set(name, f.inputs[i].Value()); err != nil {
		f.invalid[name] = strings.TrimPrefix(err.Error(), name+": ")
		return
	}
	delete(f.invalid, name)
}

func (f *formState) focusInput(i int) {
	f.inputs[f.focus].Blur()
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// check runs the client side rules: required text and values that did not parse.
// Formats are left to the backend.
func (f *formState) check() calificacion.FieldErrors {
	errs := calificacion.CheckRequired(f.values())
	if errs == nil {
		errs = calificacion.FieldErrors{}
	}
	for name, msg := range f.invalid {
		if _, ok := errs[name]; !ok {
			errs[name] = []string{msg}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// openForm mounts a fresh form for id. rec, when given, is shown while the record is
// re-read from the backend.
func (a *App) openForm(id string, rec *calificacion.Record) tea.Cmd {
	a.formSeq++
	form := newFormState(a.formSeq, id)
	a.form = form
	a.state = viewForm
	a.route = Route{Screen: ScreenForm, ID: id}
	a.status = ""

	if form.create {
		form.load(calificacion.Blank())
		return nil
	}
	if rec != nil {
		form.load(*rec)
	}
	form.loading = true
	seq := form.seq
	return func() tea.Msg {
		got, err := a.backend.GetCalificacion(a.ctx, id)
		if err != nil {
			return failedMsg{op: opLoad, seq: seq, err: err}
		}
		return formLoadedMsg{seq: seq, record: got}
	}
}

// closeForm unmounts the form and remounts the collection view.
func (a *App) closeForm() tea.Cmd {
	a.form = nil
	a.state = viewList
	a.route = Route{Screen: ScreenList}
	return a.loadRecords()
}

func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := a.form
	if f == nil {
		return a, a.closeForm()
	}
	switch {
	case key.Matches(msg, a.keys.Back):
		return a, a.closeForm()
	case key.Matches(msg, a.keys.Submit):
		return a, a.submitForm()
	case key.Matches(msg, a.keys.Next):
		f.focusInput(f.focus + 1)
		return a, nil
	case key.Matches(msg, a.keys.Prev):
		f.focusInput(f.focus - 1)
		return a, nil
	}
	if f.loading {
		return a, nil
	}
	before := f.inputs[f.focus].Value()
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	if f.inputs[f.focus].Value() != before {
		f.set(f.focus)
	}
	return a, cmd
}

// submitForm sends the whole form state. A submit while one is in flight is ignored.
func (a *App) submitForm() tea.Cmd {
	f := a.form
	if f.saving || f.loading || !f.loaded {
		return nil
	}
	if errs := f.check(); errs != nil {
		a.alert = alert{title: "Revise los campos", lines: errs.Lines()}
		a.modal = modalAlert
		return nil
	}
	f.saving = true
	seq, id, create, rec := f.seq, f.id, f.create, f.record
	return func() tea.Msg {
		var (
			saved  calificacion.Record
			err    error
			action string
		)
		if create {
			action = repository.ActionCreate
			saved, err = a.backend.CreateCalificacion(a.ctx, rec)
		} else {
			action = repository.ActionUpdate
			saved, err = a.backend.UpdateCalificacion(a.ctx, id, rec)
		}
		recordID := id
		if create {
			recordID = saved.ID
		}
		a.journal.Record(a.ctx, action, recordID, rec.Instrumento, err)
		if err != nil {
			return failedMsg{op: opSave, seq: seq, err: err}
		}
		return formSavedMsg{seq: seq, record: saved, created: create}
	}
}

func (a *App) formSaved(m formSavedMsg) tea.Cmd {
	a.form.saving = false
	if m.created {
		a.log.WithField("id", m.record.ID).Info("calificacion created")
	} else {
		a.log.WithField("id", m.record.ID).Info("calificacion updated")
	}
	cmd := a.closeForm()
	a.status = fmt.Sprintf("calificación %s guardada", m.record.Instrumento)
	return cmd
}

func (a *App) renderForm() string {
	f := a.form
	if f == nil {
		return ""
	}
	var b strings.Builder
	title := "Nueva calificación"
	if !f.create {
		title = "Modificar calificación " + f.id
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	switch {
	case f.loading:
		b.WriteString(statusStyle.Render("Cargando..."))
	case f.saving:
		b.WriteString(statusStyle.Render("Guardando..."))
	}
	b.WriteString("\n")
	if !f.create {
		b.WriteString(fmt.Sprintf("ID: %s   Corredor: %s\n\n", f.record.ID, f.record.Broker))
	}

	var general, factors []string
	for i, fd := range f.fields {
		line := a.renderFormField(i, fd)
		if fd.Kind == calificacion.KindDecimal {
			factors = append(factors, line)
		} else {
			general = append(general, line)
		}
	}
	cols := []string{lipgloss.JoinVertical(lipgloss.Left, general...)}
	for start := 0; start < len(factors); start += formFactorRows {
		end := min(start+formFactorRows, len(factors))
		cols = append(cols, "    ", lipgloss.JoinVertical(lipgloss.Left, factors[start:end]...))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n\n")
	k := a.keys
	b.WriteString(helpStyle.Render(helpLine(k.Next, k.Prev, k.Submit, k.Back)))
	return b.String()
}

func (a *App) renderFormField(i int, fd calificacion.Field) string {
	f := a.form
	label := fd.Label
	if fd.Required {
		label += "*"
	}
	if i == f.focus {
		label = selectedStyle.Render(label)
	}
	line := label + ": " + f.inputs[i].View()
	if msg, ok := f.invalid[fd.Name]; ok {
		line += " " + errorStyle.Render(msg)
	}
	return line
}
