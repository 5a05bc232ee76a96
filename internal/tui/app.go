package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/brokernuam/calificaciones/internal/api"
	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database/repository"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
)

// Backend is the subset of the HTTP client the screens use. *api.Client implements it.
type Backend interface {
	ListCalificaciones(ctx context.Context, f calificacion.Filter) ([]calificacion.Record, error)
	GetCalificacion(ctx context.Context, id string) (calificacion.Record, error)
	CreateCalificacion(ctx context.Context, r calificacion.Record) (calificacion.Record, error)
	UpdateCalificacion(ctx context.Context, id string, r calificacion.Record) (calificacion.Record, error)
	DeleteCalificacion(ctx context.Context, id string) error
	PreviewCSV(ctx context.Context, filename string, content []byte) (calificacion.Preview, error)
	BulkLoad(ctx context.Context, filename string, content []byte) (calificacion.BulkResult, error)
}

var _ Backend = (*api.Client)(nil)

// App ties together views.
type App struct {
	ctx     context.Context
	backend Backend
	journal *service.Journal
	log     logrus.FieldLogger
	keys    keyMap
	route   Route

	state  appState
	modal  modalState
	alert  alert
	status string
	width  int

	list    listState
	form    *formState
	upload  uploadState
	history []repository.ActivityEntry

	// formSeq keys form loads and submits to the form instance that issued them.
	formSeq int
}

type appState string

const (
	viewList    appState = "list"
	viewForm    appState = "form"
	viewImport  appState = "import"
	viewHistory appState = "history"
)

type modalState string

const (
	modalNone          modalState = ""
	modalAlert         modalState = "alert"
	modalConfirmDelete modalState = "confirmDelete"
)

// Options wires the application's collaborators.
type Options struct {
	Backend Backend
	Journal *service.Journal
	Log     logrus.FieldLogger
	Route   Route
}

// New builds the application. Without Options.Log the logger stored in ctx is used.
func New(ctx context.Context, opts Options) *App {
	log := opts.Log
	if log == nil {
		log = logging.FromContext(ctx)
	}
	route := opts.Route
	if route.Screen == "" {
		route.Screen = ScreenList
	}
	return &App{
		ctx:     ctx,
		backend: opts.Backend,
		journal: opts.Journal,
		log:     log,
		keys:    defaultKeys(),
		route:   route,
		state:   viewList,
		list:    newListState(),
		upload:  newUploadState(),
	}
}

// Init mounts the collection view and, when the route names a record, the form.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadRecords()}
	if a.route.Screen == ScreenForm {
		cmds = append(cmds, a.openForm(a.route.ID, nil))
	}
	return tea.Batch(cmds...)
}

// messages
type (
	recordsMsg []calificacion.Record
	historyMsg []repository.ActivityEntry

	// failedMsg reports a request failure. op names the operation for the alert title.
	failedMsg struct {
		op  operation
		seq int
		err error
	}

	formLoadedMsg struct {
		seq    int
		record calificacion.Record
	}
	formSavedMsg struct {
		seq     int
		record  calificacion.Record
		created bool
	}
	deletedMsg struct {
		id string
	}
	previewMsg struct {
		preview calificacion.Preview
		path    string
	}
	uploadedMsg struct {
		result calificacion.BulkResult
	}
)

type operation string

const (
	opList    operation = "list"
	opLoad    operation = "load"
	opSave    operation = "save"
	opDelete  operation = "delete"
	opPreview operation = "preview"
	opUpload  operation = "upload"
	opHistory operation = "history"
)

var opTitles = map[operation]string{
	opList:    "No se pudieron cargar las calificaciones",
	opLoad:    "No se pudo cargar la calificación",
	opSave:    "No se pudo guardar la calificación",
	opDelete:  "No se pudo eliminar la calificación",
	opPreview: "No se pudo previsualizar el archivo",
	opUpload:  "No se pudo cargar el archivo",
	opHistory: "No se pudo leer el historial",
}

func (a *App) loadRecords() tea.Cmd {
	f := a.list.filter
	return func() tea.Msg {
		list, err := a.backend.ListCalificaciones(a.ctx, f)
		if err != nil {
			return failedMsg{op: opList, err: err}
		}
		return recordsMsg(list)
	}
}

func (a *App) loadHistory() tea.Cmd {
	return func() tea.Msg {
		entries, err := a.journal.Recent(a.ctx)
		if err != nil {
			return failedMsg{op: opHistory, err: err}
		}
		return historyMsg(entries)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		return a, nil
	case tea.KeyMsg:
		if key.Matches(m, a.keys.ForceQuit) {
			return a, tea.Quit
		}
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewForm:
			return a.handleFormKey(m)
		case viewImport:
			return a.handleImportKey(m)
		case viewHistory:
			return a.handleHistoryKey(m)
		default:
			return a.handleListKey(m)
		}
	case recordsMsg:
		a.list.setRecords([]calificacion.Record(m))
	case historyMsg:
		a.history = []repository.ActivityEntry(m)
	case formLoadedMsg:
		if a.form != nil && a.form.seq == m.seq {
			a.form.load(m.record)
		}
	case formSavedMsg:
		if a.form == nil || a.form.seq != m.seq {
			return a, nil
		}
		return a, a.formSaved(m)
	case deletedMsg:
		a.status = fmt.Sprintf("calificación %s eliminada", m.id)
		return a, a.loadRecords()
	case previewMsg:
		a.upload.previewing = false
		a.upload.preview = &m.preview
		a.upload.previewPath = m.path
		a.status = ""
	case uploadedMsg:
		a.upload.committing = false
		return a, a.uploaded(m.result)
	case failedMsg:
		return a, a.failed(m)
	}
	return a, nil
}

// failed clears the in-flight state of the operation and raises a blocking alert.
func (a *App) failed(m failedMsg) tea.Cmd {
	switch m.op {
	case opLoad, opSave:
		if a.form == nil || a.form.seq != m.seq {
			return nil
		}
		a.form.saving = false
		a.form.loading = false
	case opPreview:
		a.upload.previewing = false
		a.status = ""
	case opUpload:
		a.upload.committing = false
		a.status = ""
	}
	a.log.WithError(m.err).WithField("op", string(m.op)).Warn("request failed")
	a.showAlert(opTitles[m.op], m.err)
	return nil
}

func (a *App) showAlert(title string, err error) {
	lines := api.Details(err)
	if len(lines) == 0 {
		lines = []string{err.Error()}
	}
	a.alert = alert{title: title, lines: lines}
	a.modal = modalAlert
}

func (a *App) View() string {
	var body string
	switch a.state {
	case viewForm:
		body = a.renderForm()
	case viewImport:
		body = a.renderImport()
	case viewHistory:
		body = a.renderHistory()
	default:
		body = a.renderList()
	}
	if a.status != "" {
		body += "\n" + statusStyle.Render(a.status)
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	statusStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	headerStyle   = lipgloss.NewStyle().Bold(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	modalStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
