package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brokernuam/calificaciones/internal/calificacion"
	"github.com/brokernuam/calificaciones/internal/database/repository"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
)

const maxUploadBytes = 32 << 20

type Handler struct {
	Store  *repository.CalificacionRepo
	Bulk   *service.BulkService
	Broker string
}

type message map[string]string

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		h.respond(w, r, message{"detail": "No encontrado."}, http.StatusNotFound)
		return
	}
	logging.FromContext(r.Context()).WithError(err).Error("request failed")
	h.respond(w, r, message{"detail": "Error interno del servidor."}, http.StatusInternalServerError)
}

func Healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// Index lists the resources under /api/.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, message{"calificaciones": "/api/" + calificacion.CollectionPath}, http.StatusOK)
}

func (h *Handler) ListCalificaciones(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.List(r.Context(), calificacion.FilterFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, list, http.StatusOK)
}

func (h *Handler) GetCalificacion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, rec, http.StatusOK)
}

func (h *Handler) CreateCalificacion(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec = rec.WithoutID()
	rec.Broker = h.Broker
	if strings.TrimSpace(rec.Origen) == "" {
		rec.Origen = service.OrigenManual
	}
	if !h.valid(w, r, rec) {
		return
	}
	created, err := h.Store.Insert(r.Context(), rec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, created, http.StatusCreated)
}

// UpdateCalificacion replaces the stored record. The broker is kept from the stored row.
func (h *Handler) UpdateCalificacion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	existing, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec.Broker = existing.Broker
	if !h.valid(w, r, rec) {
		return
	}
	updated, err := h.Store.Update(r.Context(), id, rec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, updated, http.StatusOK)
}

func (h *Handler) DeleteCalificacion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PreviewCSV(w http.ResponseWriter, r *http.Request) {
	content, ok := h.upload(w, r)
	if !ok {
		return
	}
	preview, err := h.Bulk.Preview(content)
	if err != nil {
		h.respond(w, r, message{"error": fmt.Sprintf("Error procesando el archivo: %v", err)}, http.StatusBadRequest)
		return
	}
	h.respond(w, r, preview, http.StatusOK)
}

func (h *Handler) BulkLoad(w http.ResponseWriter, r *http.Request) {
	content, ok := h.upload(w, r)
	if !ok {
		return
	}
	res, err := h.Bulk.Load(r.Context(), content)
	if err != nil {
		h.respond(w, r, message{"error": fmt.Sprintf("Error procesando la carga: %v", err)}, http.StatusBadRequest)
		return
	}
	h.respond(w, r, res, http.StatusOK)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respond(w, r, message{"detail": "No encontrado."}, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (calificacion.Record, bool) {
	var rec calificacion.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.respond(w, r, message{"detail": fmt.Sprintf("JSON parse error - %v", err)}, http.StatusBadRequest)
		return calificacion.Record{}, false
	}
	return rec, true
}

func (h *Handler) valid(w http.ResponseWriter, r *http.Request, rec calificacion.Record) bool {
	fe := calificacion.Validate(rec)
	if fe == nil {
		return true
	}
	logging.FromContext(r.Context()).WithField("errors", fe.Lines()).Warn("validation failed")
	h.respond(w, r, fe, http.StatusBadRequest)
	return false
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.respond(w, r, message{"error": fmt.Sprintf("Error procesando el archivo: %v", err)}, http.StatusBadRequest)
		return nil, false
	}
	f, _, err := r.FormFile(calificacion.UploadField)
	if err != nil {
		h.respond(w, r, message{"error": "No se subió ningún archivo"}, http.StatusBadRequest)
		return nil, false
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		h.respond(w, r, message{"error": fmt.Sprintf("Error procesando el archivo: %v", err)}, http.StatusBadRequest)
		return nil, false
	}
	return content, true
}
