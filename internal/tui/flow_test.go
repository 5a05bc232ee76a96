package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/brokernuam/calificaciones/internal/api"
	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database"
	"github.com/brokernuam/calificaciones/internal/database/repository"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
)

// fakeBackend is an in-memory collection that records every call.
type fakeBackend struct {
	mu      sync.Mutex
	records []calificacion.Record
	nextID  int64
	calls   []string
	uploads map[string][][]byte

	failList   error
	failCreate error
	failUpdate error
	failDelete error
}

func newFakeBackend(records ...calificacion.Record) *fakeBackend {
	return &fakeBackend{records: records, nextID: 100, uploads: map[string][][]byte{}}
}

func (b *fakeBackend) call(format string, args ...any) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) count(prefix string) int {
	n := 0
	for _, c := range b.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (b *fakeBackend) lastList() string {
	calls := b.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if q, ok := strings.CutPrefix(calls[i], "list "); ok {
			return q
		}
	}
	return "<none>"
}

func (b *fakeBackend) ListCalificaciones(_ context.Context, f calificacion.Filter) ([]calificacion.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("list %s", f.Query())
	if b.failList != nil {
		return nil, b.failList
	}
	out := []calificacion.Record{}
	for _, r := range b.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *fakeBackend) GetCalificacion(_ context.Context, id string) (calificacion.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("get %s", id)
	for _, r := range b.records {
		if r.ID == id {
			return r, nil
		}
	}
	return calificacion.Record{}, &api.Error{Method: "GET", Path: calificacion.ItemPath(id), Status: 404, Message: "No encontrado."}
}

func (b *fakeBackend) CreateCalificacion(_ context.Context, r calificacion.Record) (calificacion.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("create %s", r.Instrumento)
	if b.failCreate != nil {
		return calificacion.Record{}, b.failCreate
	}
	b.nextID++
	r = r.AssignID(b.nextID)
	b.records = append(b.records, r)
	return r, nil
}

func (b *fakeBackend) UpdateCalificacion(_ context.Context, id string, r calificacion.Record) (calificacion.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("update %s", id)
	if b.failUpdate != nil {
		return calificacion.Record{}, b.failUpdate
	}
	for i := range b.records {
		if b.records[i].ID == id {
			b.records[i] = r
			return r, nil
		}
	}
	return calificacion.Record{}, &api.Error{Method: "PUT", Path: calificacion.ItemPath(id), Status: 404}
}

func (b *fakeBackend) DeleteCalificacion(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("delete %s", id)
	if b.failDelete != nil {
		return b.failDelete
	}
	for i := range b.records {
		if b.records[i].ID == id {
			b.records = append(b.records[:i], b.records[i+1:]...)
			return nil
		}
	}
	return &api.Error{Method: "DELETE", Path: calificacion.ItemPath(id), Status: 404}
}

func (b *fakeBackend) PreviewCSV(_ context.Context, filename string, content []byte) (calificacion.Preview, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("preview %s", filename)
	b.uploads["preview"] = append(b.uploads["preview"], content)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var p calificacion.Preview
	for _, line := range lines {
		var row []calificacion.Cell
		for _, v := range strings.Split(line, ",") {
			row = append(row, calificacion.ValueCell(v))
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}

func (b *fakeBackend) BulkLoad(_ context.Context, filename string, content []byte) (calificacion.BulkResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.call("bulk %s", filename)
	b.uploads["bulk"] = append(b.uploads["bulk"], content)
	return calificacion.BulkResult{Status: "Carga completada", Creados: 1}, nil
}

func record(t *testing.T, js string) calificacion.Record {
	t.Helper()
	var r calificacion.Record
	require.NoError(t, json.Unmarshal([]byte(js), &r))
	return r
}

func flowKey(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func flowApplyMsg(t *testing.T, m *App, msg tea.Msg) *App {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(*App)
	if !ok {
		t.Fatalf("Update returned %T, want *App", next)
	}
	return flowDrainCmd(t, got, cmd)
}

func flowPress(t *testing.T, m *App, key string) *App {
	t.Helper()
	return flowApplyMsg(t, m, flowKey(key))
}

func flowType(t *testing.T, m *App, input string) *App {
	t.Helper()
	for _, r := range input {
		m = flowPress(t, m, string(r))
	}
	return m
}

func flowDrainCmd(t *testing.T, m *App, cmd tea.Cmd) *App {
	t.Helper()
	var depth int
	var drain func(cmd tea.Cmd)
	drain = func(cmd tea.Cmd) {
		for ; cmd != nil; depth++ {
			if depth >= 32 {
				t.Fatal("command chain exceeded max depth")
			}
			msg := cmd()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, c := range batch {
					drain(c)
				}
				return
			}
			if msg == nil {
				return
			}
			next, nextCmd := m.Update(msg)
			got, ok := next.(*App)
			if !ok {
				t.Fatalf("command update returned %T, want *App", next)
			}
			m = got
			cmd = nextCmd
		}
	}
	drain(cmd)
	return m
}

func testJournal(t *testing.T) *service.Journal {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "journal.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return service.NewJournal(repository.NewActivityRepo(db), logging.Discard())
}

func newFlowApp(t *testing.T, b *fakeBackend, route Route) *App {
	t.Helper()
	a := New(context.Background(), Options{
		Backend: b,
		Journal: testJournal(t),
		Log:     logging.Discard(),
		Route:   route,
	})
	return flowDrainCmd(t, a, a.Init())
}

func (f *formState) indexOf(name string) int {
	for i, fd := range f.fields {
		if fd.Name == name {
			return i
		}
	}
	return -1
}

func flowFocusField(t *testing.T, m *App, name string) *App {
	t.Helper()
	require.NotNil(t, m.form)
	i := m.form.indexOf(name)
	require.GreaterOrEqual(t, i, 0, name)
	for m.form.focus != i {
		m = flowPress(t, m, "tab")
	}
	return m
}

func TestFlowInitialLoadRendersEveryRecord(t *testing.T) {
	b := newFakeBackend(
		record(t, `{"id":1,"instrumento":"BONO-A","fecha_pago":"2024-03-31","origen":"Manual","factor_8":"0.100000000"}`),
		record(t, `{"id":2,"instrumento":"BONO-B","fecha_pago":"2024-06-30","mercado":"cfi","factor_8":0.25}`),
		record(t, `{"id":3,"instrumento":"CFI-RENTA","fecha_pago":"2024-09-30"}`),
	)
	m := newFlowApp(t, b, Route{})

	require.Equal(t, []string{"list "}, b.Calls())
	require.Len(t, m.list.records, 3)
	view := m.View()
	for _, want := range []string{"BONO-A", "BONO-B", "CFI-RENTA", "0.100000000", "0.250000000", "2024-06-30"} {
		require.Contains(t, view, want)
	}
	_, rows := m.listRows()
	require.Len(t, rows, 3)
}

func TestFlowFactorColumnsScroll(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-01-01","factor_29":"2.500000000"}`))
	m := newFlowApp(t, b, Route{})

	headers, _ := m.listRows()
	require.Contains(t, headers, "factor_8")
	require.NotContains(t, headers, "factor_29")
	for i := 0; i < 40; i++ {
		m = flowPress(t, m, "right")
	}
	headers, rows := m.listRows()
	require.Equal(t, "factor_29", headers[len(headers)-1])
	require.Equal(t, "2.500000000", rows[0][len(rows[0])-1])
}

func TestFlowFilterApplyAndClear(t *testing.T) {
	b := newFakeBackend(
		record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-01-31","mercado":"X","periodo":"2024-01"}`),
		record(t, `{"id":2,"instrumento":"B","fecha_pago":"2024-01-31","mercado":"Y","periodo":"2024-01"}`),
	)
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "/")
	m = flowType(t, m, "X")
	m = flowPress(t, m, "tab")
	m = flowPress(t, m, "tab")
	m = flowType(t, m, "2024-01")
	m = flowPress(t, m, "enter")

	require.Equal(t, "mercado=X&periodo=2024-01", b.lastList())
	require.Equal(t, calificacion.Filter{Mercado: "X", Periodo: "2024-01"}, m.list.filter)
	require.Len(t, m.list.records, 1)
	require.Equal(t, -1, m.list.focus)

	m = flowPress(t, m, "x")
	require.Equal(t, "", b.lastList())
	require.True(t, m.list.filter.IsZero())
	for _, in := range m.list.inputs {
		require.Empty(t, in.Value())
	}
	require.Len(t, m.list.records, 2)
}

func TestFlowFilterEscLeavesFilterUnapplied(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-01-31","mercado":"X"}`))
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "/")
	require.Equal(t, filterMercado, m.list.focus)
	require.Contains(t, m.View(), "aplicar")
	m = flowType(t, m, "Z")
	m = flowPress(t, m, "esc")

	require.Equal(t, -1, m.list.focus)
	require.True(t, m.list.filter.IsZero())
	require.Equal(t, 1, b.count("list "))
	require.Len(t, m.list.records, 1)
}

func TestNewTakesLoggerFromContext(t *testing.T) {
	logger := logging.Discard()
	a := New(logging.WithLogger(context.Background(), logger), Options{Backend: newFakeBackend()})
	require.Same(t, logger, a.log)
}

func TestFlowListFailureKeepsPriorList(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-01-31"}`))
	m := newFlowApp(t, b, Route{})
	require.Len(t, m.list.records, 1)

	b.mu.Lock()
	b.failList = errors.New("dial tcp: connection refused")
	b.mu.Unlock()
	m = flowPress(t, m, "r")

	require.Equal(t, modalAlert, m.modal)
	require.Equal(t, []string{"dial tcp: connection refused"}, m.alert.lines)
	require.Len(t, m.list.records, 1)

	// the alert holds the keyboard until dismissed
	m = flowPress(t, m, "n")
	require.Equal(t, viewList, m.state)
	m = flowPress(t, m, "enter")
	require.Equal(t, modalNone, m.modal)
}

func TestFlowCreateSubmitsOnce(t *testing.T) {
	b := newFakeBackend()
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "n")
	require.Equal(t, viewForm, m.state)
	require.True(t, m.form.create)
	require.Equal(t, "0.000000000", m.form.Value("factor_8"))

	m = flowFocusField(t, m, calificacion.FieldInstrumento)
	m = flowType(t, m, "BONO-NUEVO")
	m = flowFocusField(t, m, calificacion.FieldFechaPago)
	m = flowType(t, m, "2024-03-31")

	next, cmd := m.Update(flowKey("ctrl+s"))
	m = next.(*App)
	require.NotNil(t, cmd)
	require.True(t, m.form.saving)
	_, again := m.Update(flowKey("ctrl+s"))
	require.Nil(t, again)
	m = flowDrainCmd(t, m, cmd)

	require.Equal(t, 1, b.count("create "))
	require.Equal(t, 0, b.count("update "))
	require.Equal(t, viewList, m.state)
	require.Nil(t, m.form)
	require.Contains(t, m.status, "BONO-NUEVO")
	require.Len(t, m.list.records, 1)
	require.Equal(t, "2024-03-31", m.list.records[0].FechaPago)

	entries, err := m.journal.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, repository.ActionCreate, entries[0].Action)
	require.Equal(t, "101", entries[0].RecordID)
}

func TestFlowEditLoadsAndUpdatesByID(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":42,"instrumento":"BONO-A","fecha_pago":"2024-03-31","factor_8":"0.123456789","montos":{"amount1":"5"}}`))
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "e")
	require.Equal(t, 1, b.count("get 42"))
	require.False(t, m.form.create)
	require.Equal(t, "0.123456789", m.form.Value("factor_8"))
	require.Equal(t, "BONO-A", m.form.Value("instrumento"))

	m = flowFocusField(t, m, calificacion.FieldPeriodo)
	m = flowType(t, m, "2024-01")
	m = flowPress(t, m, "ctrl+s")

	require.Equal(t, []string{"update 42"}, filterCalls(b.Calls(), "update", "create"))
	require.Equal(t, viewList, m.state)
	require.Equal(t, "2024-01", m.list.records[0].Periodo)
	require.Contains(t, m.list.records[0].Extra(), "montos")
}

func filterCalls(calls []string, prefixes ...string) []string {
	var out []string
	for _, c := range calls {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p+" ") {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestFlowEditRouteLoadsRecord(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":7,"instrumento":"BONO-A","fecha_pago":"2024-03-31","factor_8":0.123456789}`))
	route, err := ParseRoute("/calificaciones/7")
	require.NoError(t, err)

	m := newFlowApp(t, b, route)
	require.Equal(t, viewForm, m.state)
	require.Equal(t, "0.123456789", m.form.Value("factor_8"))
	require.Equal(t, 1, b.count("list "))
	require.Equal(t, 1, b.count("get 7"))
	require.Contains(t, m.View(), "Modificar calificación 7")
}

func TestFlowEditLoadFailureBlocksSubmit(t *testing.T) {
	b := newFakeBackend()
	m := newFlowApp(t, b, Route{Screen: ScreenForm, ID: "9"})

	require.Equal(t, modalAlert, m.modal)
	require.Equal(t, []string{"No encontrado."}, m.alert.lines)
	m = flowPress(t, m, "enter")
	m = flowPress(t, m, "ctrl+s")
	require.Equal(t, 0, b.count("update "))
}

func TestFlowFailedSaveKeepsFields(t *testing.T) {
	b := newFakeBackend()
	b.failCreate = &api.Error{
		Method:      "POST",
		Path:        calificacion.CollectionPath,
		Status:      400,
		FieldErrors: calificacion.FieldErrors{"instrumento": {"ya existe"}},
	}
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "n")
	m = flowFocusField(t, m, calificacion.FieldInstrumento)
	m = flowType(t, m, "BONO-A")
	m = flowFocusField(t, m, calificacion.FieldFechaPago)
	m = flowType(t, m, "2024-03-31")
	m = flowPress(t, m, "ctrl+s")

	require.Equal(t, 1, b.count("create "))
	require.Equal(t, viewForm, m.state)
	require.Equal(t, modalAlert, m.modal)
	require.Equal(t, []string{"instrumento: ya existe"}, m.alert.lines)
	require.False(t, m.form.saving)
	require.Equal(t, "BONO-A", m.form.Value("instrumento"))
	require.Equal(t, "2024-03-31", m.form.Value("fecha_pago"))
	require.Empty(t, m.status)

	entries, err := m.journal.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, repository.OutcomeError, entries[0].Outcome)
	require.Equal(t, "instrumento: ya existe", entries[0].Detail)

	// dismiss and retry once the backend accepts it
	b.mu.Lock()
	b.failCreate = nil
	b.mu.Unlock()
	m = flowPress(t, m, "enter")
	m = flowPress(t, m, "ctrl+s")
	require.Equal(t, 2, b.count("create "))
	require.Equal(t, viewList, m.state)
}

func TestFlowFailedUpdateKeepsFields(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":42,"instrumento":"BONO-A","fecha_pago":"2024-03-31"}`))
	b.failUpdate = errors.New("context deadline exceeded")
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "e")
	m = flowFocusField(t, m, calificacion.FieldMercado)
	m = flowType(t, m, "cfi")
	m = flowPress(t, m, "ctrl+s")

	require.Equal(t, 1, b.count("update 42"))
	require.Equal(t, viewForm, m.state)
	require.Equal(t, "cfi", m.form.Value("mercado"))
	require.Equal(t, []string{"context deadline exceeded"}, m.alert.lines)
}

func TestFlowClientChecksBlockSubmit(t *testing.T) {
	b := newFakeBackend()
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "n")
	m = flowPress(t, m, "ctrl+s")
	require.Equal(t, modalAlert, m.modal)
	require.Contains(t, m.alert.lines, "fecha_pago: este campo es obligatorio")
	require.Contains(t, m.alert.lines, "instrumento: este campo es obligatorio")
	m = flowPress(t, m, "esc")

	m = flowFocusField(t, m, calificacion.FieldInstrumento)
	m = flowType(t, m, "A")
	m = flowFocusField(t, m, calificacion.FieldFechaPago)
	m = flowType(t, m, "2024-03-31")
	m = flowFocusField(t, m, "factor_8")
	m = flowPress(t, m, "ctrl+u")
	m = flowType(t, m, "0.1234567891")
	require.Contains(t, m.form.invalid, "factor_8")

	m = flowPress(t, m, "ctrl+s")
	require.Equal(t, modalAlert, m.modal)
	require.Len(t, m.alert.lines, 1)
	require.True(t, strings.HasPrefix(m.alert.lines[0], "factor_8: "))
	require.Equal(t, 0, b.count("create "))
}

func TestFlowDateFormatLeftToBackend(t *testing.T) {
	b := newFakeBackend()
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "n")
	m = flowFocusField(t, m, calificacion.FieldInstrumento)
	m = flowType(t, m, "BONO-Z")
	m = flowFocusField(t, m, calificacion.FieldFechaPago)
	m = flowType(t, m, "2024-1-5")
	m = flowPress(t, m, "ctrl+s")

	require.Equal(t, modalNone, m.modal)
	require.Equal(t, []string{"create BONO-Z"}, filterCalls(b.Calls(), "create"))
	require.Equal(t, "2024-1-5", b.records[len(b.records)-1].FechaPago)
	require.Equal(t, viewList, m.state)
}

func TestFlowCancelDiscardsEdits(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-03-31"}`))
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "e")
	m = flowFocusField(t, m, calificacion.FieldInstrumento)
	m = flowType(t, m, "ZZZ")
	m = flowPress(t, m, "esc")

	require.Equal(t, viewList, m.state)
	require.Equal(t, 0, b.count("update "))
	require.Equal(t, "A", m.list.records[0].Instrumento)
	require.Equal(t, 2, b.count("list "))
}

func TestFlowStaleFormResponsesIgnored(t *testing.T) {
	b := newFakeBackend(record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-03-31"}`))
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "e")
	old := m.form.seq
	m = flowPress(t, m, "esc")
	m = flowPress(t, m, "n")

	m = flowApplyMsg(t, m, formLoadedMsg{seq: old, record: record(t, `{"id":1,"instrumento":"STALE"}`)})
	require.Empty(t, m.form.Value("instrumento"))
	m = flowApplyMsg(t, m, failedMsg{op: opLoad, seq: old, err: errors.New("late")})
	require.Equal(t, modalNone, m.modal)
}

func TestFlowDeleteConfirmsThenRefetches(t *testing.T) {
	b := newFakeBackend(
		record(t, `{"id":1,"instrumento":"A","fecha_pago":"2024-03-31"}`),
		record(t, `{"id":2,"instrumento":"B","fecha_pago":"2024-03-31"}`),
	)
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "down")
	m = flowPress(t, m, "d")
	require.Equal(t, modalConfirmDelete, m.modal)
	require.Contains(t, m.View(), "¿Eliminar la calificación 2")

	m = flowPress(t, m, "n")
	require.Equal(t, 0, b.count("delete "))

	m = flowPress(t, m, "d")
	m = flowPress(t, m, "y")
	require.Equal(t, []string{"delete 2"}, filterCalls(b.Calls(), "delete"))
	require.Len(t, m.list.records, 1)
	require.Equal(t, 0, m.list.cursor)

	m = flowPress(t, m, "h")
	require.Equal(t, viewHistory, m.state)
	require.Len(t, m.history, 1)
	require.Equal(t, repository.ActionDelete, m.history[0].Action)
	require.Contains(t, m.View(), "delete")
	m = flowPress(t, m, "esc")
	require.Equal(t, viewList, m.state)
}

func writeUpload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carga.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFlowCommitWithoutPreview(t *testing.T) {
	b := newFakeBackend()
	content := "instrumento,fecha_pago,factor_8\nBONO-A,2024-03-31,0.5\n"
	path := writeUpload(t, content)
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	require.Equal(t, viewImport, m.state)
	m = flowType(t, m, path)
	m = flowPress(t, m, "ctrl+s")

	require.Equal(t, 0, b.count("preview "))
	require.Equal(t, []string{"bulk carga.csv"}, filterCalls(b.Calls(), "bulk"))
	require.Equal(t, [][]byte{[]byte(content)}, b.uploads["bulk"])
	require.Equal(t, viewList, m.state)
	require.Contains(t, m.status, "Carga completada")
	require.Equal(t, 2, b.count("list "))
}

func TestFlowPreviewDoesNotAffectCommit(t *testing.T) {
	b := newFakeBackend()
	content := "instrumento,factor_8\nBONO-A,0.5\nBONO-B,0.25\n"
	path := writeUpload(t, content)
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	m = flowType(t, m, path)
	m = flowPress(t, m, "ctrl+p")
	m = flowPress(t, m, "ctrl+p")
	require.Equal(t, 2, b.count("preview "))
	require.NotNil(t, m.upload.preview)
	require.Len(t, m.upload.preview.Rows, 3)
	view := m.View()
	require.Contains(t, view, "BONO-B")
	require.Contains(t, view, "0.25")

	m = flowPress(t, m, "ctrl+s")
	require.Equal(t, [][]byte{[]byte(content)}, b.uploads["bulk"])
	require.Nil(t, m.upload.preview)
}

func TestFlowPreviewFailureShowsAlert(t *testing.T) {
	b := newFakeBackend()
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	m = flowType(t, m, filepath.Join(t.TempDir(), "missing.csv"))
	m = flowPress(t, m, "ctrl+p")

	require.Equal(t, modalAlert, m.modal)
	require.Equal(t, opTitles[opPreview], m.alert.title)
	require.Nil(t, m.upload.preview)
	require.False(t, m.upload.previewing)
	require.Equal(t, 0, b.count("preview "))
	require.Equal(t, viewImport, m.state)
}

func TestFlowPreviewFailureKeepsPriorPreview(t *testing.T) {
	b := newFakeBackend()
	path := writeUpload(t, "instrumento,factor_8\nBONO-A,0.5\nBONO-B,0.25\n")
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	m = flowType(t, m, path)
	m = flowPress(t, m, "ctrl+p")
	require.NotNil(t, m.upload.preview)

	require.NoError(t, os.Remove(path))
	m = flowPress(t, m, "ctrl+p")
	require.Equal(t, modalAlert, m.modal)
	require.Equal(t, opTitles[opPreview], m.alert.title)
	require.NotNil(t, m.upload.preview)
	require.Len(t, m.upload.preview.Rows, 3)
	require.Equal(t, path, m.upload.previewPath)
	require.Equal(t, 1, b.count("preview "))

	m = flowPress(t, m, "esc")
	require.Equal(t, modalNone, m.modal)
	require.Contains(t, m.View(), "BONO-B")
}

func TestFlowCommitCompletionKeepsOpenForm(t *testing.T) {
	b := newFakeBackend()
	path := writeUpload(t, "instrumento\nA\n")
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	m = flowType(t, m, path)
	next, cmd := m.Update(flowKey("ctrl+s"))
	m = next.(*App)
	require.NotNil(t, cmd)

	m = flowPress(t, m, "esc")
	require.Equal(t, viewList, m.state)
	m = flowPress(t, m, "n")
	require.Equal(t, viewForm, m.state)

	m = flowDrainCmd(t, m, cmd)
	require.Equal(t, 1, b.count("bulk "))
	require.Equal(t, viewForm, m.state)
	require.NotNil(t, m.form)
	require.Contains(t, m.status, "Carga completada")
}

func TestFlowCommitGuardIgnoresRepeat(t *testing.T) {
	b := newFakeBackend()
	path := writeUpload(t, "instrumento\nA\n")
	m := newFlowApp(t, b, Route{})

	m = flowPress(t, m, "i")
	m = flowType(t, m, path)
	next, cmd := m.Update(flowKey("ctrl+s"))
	m = next.(*App)
	require.NotNil(t, cmd)
	_, again := m.Update(flowKey("ctrl+s"))
	require.Nil(t, again)
	m = flowDrainCmd(t, m, cmd)
	require.Equal(t, 1, b.count("bulk "))
	require.False(t, m.upload.committing)
}
