package projectapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagewright/guard"
	"github.com/hazyhaar/pagewright/idgen"
)

// maxBody bounds request bodies; documents are the largest payload.
const maxBody = 8 << 20

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name string          `json:"name"`
	HTML string          `json:"html"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// SaveDocumentRequest is the body of PUT /projects/{id}/document.
type SaveDocumentRequest struct {
	HTML     string          `json:"html"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	Revision uint64          `json:"revision"`
}

// SaveDocumentResponse acknowledges a saved document.
type SaveDocumentResponse struct {
	ID       string `json:"id"`
	Revision uint64 `json:"revision"`
	SavedAt  int64  `json:"saved_at"`
}

func decodeBody(r *http.Request, v any) error {
	data, err := guard.LimitedReadAll(r.Body, maxBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// notFoundOr writes 404 for ErrNotFound and 500 otherwise.
func (s *Server) notFoundOr(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.logger.Error("projectapi: store", "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	p := &Project{ID: idgen.New(), Name: req.Name, HTML: req.HTML, Meta: req.Meta}
	if err := s.store.InsertProject(r.Context(), p); err != nil {
		s.notFoundOr(w, err)
		return
	}
	s.logger.Info("projectapi: project created", "id", p.ID, "name", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.notFoundOr(w, err)
		return
	}
	if list == nil {
		list = []*Project{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.notFoundOr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.notFoundOr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SaveDocumentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SaveDocument(r.Context(), id, req.HTML, req.Meta, req.Revision); err != nil {
		s.notFoundOr(w, err)
		return
	}
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		s.notFoundOr(w, err)
		return
	}
	s.logger.Debug("projectapi: document saved", "id", id, "revision", req.Revision, "bytes", len(req.HTML))
	writeJSON(w, http.StatusOK, SaveDocumentResponse{ID: id, Revision: p.Revision, SavedAt: p.UpdatedAt})
}
