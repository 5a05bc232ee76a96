package devserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/brokernuam/calificaciones/internal/database/repository"
	"github.com/brokernuam/calificaciones/internal/logging"
	"github.com/brokernuam/calificaciones/internal/service"
)

// Options configures the development backend.
type Options struct {
	DB             *sql.DB
	Broker         string
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

// Server serves the calificaciones REST surface over a sqlite store.
type Server struct {
	Router  *chi.Mux
	Handler *Handler
	handler http.Handler
	log     logrus.FieldLogger
}

func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	server := &Server{
		Router: chi.NewRouter(),
		log:    log,
		Handler: &Handler{
			Store:  repository.NewCalificacionRepo(opts.DB),
			Bulk:   &service.BulkService{DB: opts.DB, Broker: opts.Broker, Log: log},
			Broker: opts.Broker,
		},
	}
	server.InitRoutes()
	server.handler = cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-CSRFToken"},
		AllowCredentials: true,
	}).Handler(server.Router)
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(requestLogger(s.log))

	s.Router.Get("/alive", Healthcheck)
	s.Router.Get("/api/", s.Handler.Index)

	s.Router.Route("/api/calificaciones", func(r chi.Router) {
		r.Get("/", s.Handler.ListCalificaciones)
		r.Post("/", s.Handler.CreateCalificacion)
		r.Post("/previsualizar-csv/", s.Handler.PreviewCSV)
		r.Post("/carga-masiva/", s.Handler.BulkLoad)
		r.Get("/{id}/", s.Handler.GetCalificacion)
		r.Put("/{id}/", s.Handler.UpdateCalificacion)
		r.Delete("/{id}/", s.Handler.DeleteCalificacion)
	})
}

func NewHTTPServer(addr string, server *Server) *http.Server {
	return &http.Server{
		Addr:         addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Handler:      server,
	}
}

// requestLogger logs one line per request with its status and duration. Handlers find
// the request scoped logger through logging.FromContext.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"request_id": r.Header.Get("X-Request-ID"),
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), entry)))
			entry.WithFields(logrus.Fields{
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request")
		})
	}
}
