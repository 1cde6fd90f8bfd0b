// Package projectapi is the backend the editor saves to: projects with their
// serialised document, and the opaque automation records (triggers, data
// tables, data bindings, external connections) attached to them.
package projectapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"

	"github.com/hazyhaar/pagewright/dbopen"
	"github.com/hazyhaar/pagewright/projectapi/internal/store"
)

// Re-exported store types.
type (
	Store       = store.Store
	Project     = store.Project
	Entity      = store.Entity
	Kind        = store.Kind
	Automation  = store.Automation
	TableSchema = store.TableSchema
	TableColumn = store.TableColumn
)

// Automation kinds.
const (
	KindTrigger     = store.KindTrigger
	KindDataTable   = store.KindDataTable
	KindDataBinding = store.KindDataBinding
	KindConnection  = store.KindConnection
)

// ErrNotFound is returned when a project or entity does not exist.
var ErrNotFound = store.ErrNotFound

// Schema is the SQL schema of the project database.
const Schema = store.Schema

// OpenStore opens (or creates) the project database at path.
func OpenStore(path string, opts ...dbopen.Option) (*Store, error) {
	return store.Open(path, opts...)
}

// Server serves the project API.
type Server struct {
	store        *Store
	oauth        map[string]*oauth2.Config
	client       *http.Client
	allowPrivate bool
	live         http.Handler
	logger       *slog.Logger
	router       chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithOAuth registers an OAuth client for provider.
func WithOAuth(provider string, cfg *oauth2.Config) Option {
	return func(s *Server) { s.oauth[provider] = cfg }
}

// WithHTTPClient sets the client used by test-connection.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) { s.client = c }
}

// WithAllowPrivate lets test-connection reach private and loopback hosts.
func WithAllowPrivate() Option {
	return func(s *Server) { s.allowPrivate = true }
}

// WithLive mounts a live-preview websocket handler at GET /live.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// New creates a server on st.
func New(st *Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		oauth:  make(map[string]*oauth2.Config),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(apiHeaders)
	r.Use(limitBody(maxBody))
	r.Use(s.logRequests)
	s.RegisterHTTP(r)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterHTTP mounts the API routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Post("/", s.handleCreateProject)
		r.Get("/", s.handleListProjects)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Delete("/", s.handleDeleteProject)
			r.Put("/document", s.handleSaveDocument)

			r.Route("/automation", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Post("/", s.handlePostAutomation)
				r.Post("/triggers", s.handlePutEntity(KindTrigger))
				r.Get("/data-tables", s.handleListEntities(KindDataTable))
				r.Post("/data-tables", s.handlePutEntity(KindDataTable))
				r.Delete("/data-tables/{entityID}", s.handleDeleteEntity(KindDataTable))
				r.Post("/data-bindings", s.handlePutEntity(KindDataBinding))
				r.Post("/external-connections", s.handlePutEntity(KindConnection))
				r.Post("/test-connection", s.handleTestConnection)
				r.Post("/setup-database", s.handleSetupDatabase)
			})
		})
	})
	r.Get("/oauth/{provider}/config", s.handleOAuthConfig)
	r.Post("/oauth/{provider}/exchange", s.handleOAuthExchange)
	if s.live != nil {
		r.Get("/live", s.live.ServeHTTP)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
