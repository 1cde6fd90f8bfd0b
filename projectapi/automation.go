package projectapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagewright/idgen"
	"github.com/hazyhaar/pagewright/projectapi/internal/store"
)

// AutomationRequest is the body of POST /projects/{id}/automation. Each
// payload is upserted under its "id" field, or a fresh id when absent.
type AutomationRequest struct {
	Triggers     []json.RawMessage `json:"triggers,omitempty"`
	DataTables   []json.RawMessage `json:"data_tables,omitempty"`
	DataBindings []json.RawMessage `json:"data_bindings,omitempty"`
	Connections  []json.RawMessage `json:"external_connections,omitempty"`
}

// SetupRequest is the optional body of POST .../setup-database. An empty
// list materialises every data table of the project.
type SetupRequest struct {
	Tables []string `json:"tables,omitempty"`
}

// MaterializedTable maps a data-table entity to its SQLite table.
type MaterializedTable struct {
	SchemaID string `json:"schema_id"`
	Table    string `json:"table"`
}

// SetupResult reports which tables were created and which failed.
type SetupResult struct {
	Tables []MaterializedTable `json:"tables"`
	Errors map[string]string   `json:"errors,omitempty"`
}

// newEntity builds an entity from a raw payload. The payload must be a
// JSON object; its "id" field, if any, becomes the entity id.
func newEntity(projectID string, kind Kind, payload json.RawMessage) (*Entity, error) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("%s payload must be a json object: %w", kind, err)
	}
	if head.ID == "" {
		head.ID = idgen.New()
	}
	if kind == KindDataTable {
		if err := validateTable(projectID, payload); err != nil {
			return nil, err
		}
	}
	return &Entity{ID: head.ID, ProjectID: projectID, Kind: kind, Payload: payload}, nil
}

func validateTable(projectID string, payload json.RawMessage) error {
	var ts TableSchema
	if err := json.Unmarshal(payload, &ts); err != nil {
		return err
	}
	if _, err := store.TableName(projectID, ts.Name); err != nil {
		return fmt.Errorf("data table name: %w", err)
	}
	return nil
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAutomation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.notFoundOr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePostAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AutomationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		s.notFoundOr(w, err)
		return
	}

	groups := []struct {
		kind     Kind
		payloads []json.RawMessage
	}{
		{KindTrigger, req.Triggers},
		{KindDataTable, req.DataTables},
		{KindDataBinding, req.DataBindings},
		{KindConnection, req.Connections},
	}
	var entities []*Entity
	for _, g := range groups {
		for _, p := range g.payloads {
			e, err := newEntity(id, g.kind, p)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			entities = append(entities, e)
		}
	}
	for _, e := range entities {
		if err := s.store.PutEntity(r.Context(), e); err != nil {
			s.notFoundOr(w, err)
			return
		}
	}

	a, err := s.store.GetAutomation(r.Context(), id)
	if err != nil {
		s.notFoundOr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handlePutEntity(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var payload json.RawMessage
		if err := decodeBody(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if _, err := s.store.GetProject(r.Context(), id); err != nil {
			s.notFoundOr(w, err)
			return
		}
		e, err := newEntity(id, kind, payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.store.PutEntity(r.Context(), e); err != nil {
			s.notFoundOr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func (s *Server) handleListEntities(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := s.store.GetProject(r.Context(), id); err != nil {
			s.notFoundOr(w, err)
			return
		}
		list, err := s.store.ListEntities(r.Context(), id, kind)
		if err != nil {
			s.notFoundOr(w, err)
			return
		}
		if list == nil {
			list = []*Entity{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) handleDeleteEntity(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.store.DeleteEntity(r.Context(), chi.URLParam(r, "id"), kind, chi.URLParam(r, "entityID"))
		if err != nil {
			s.notFoundOr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSetupDatabase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SetupRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if _, err := s.store.GetProject(r.Context(), id); err != nil {
		s.notFoundOr(w, err)
		return
	}
	tables, err := s.store.ListEntities(r.Context(), id, KindDataTable)
	if err != nil {
		s.notFoundOr(w, err)
		return
	}

	res := SetupResult{Tables: []MaterializedTable{}}
	for _, e := range tables {
		if len(req.Tables) > 0 && !slices.Contains(req.Tables, e.ID) {
			continue
		}
		var ts TableSchema
		if err := json.Unmarshal(e.Payload, &ts); err != nil {
			res.addError(e.ID, err)
			continue
		}
		name, err := s.store.MaterializeTable(r.Context(), id, e.ID, ts)
		if err != nil {
			res.addError(e.ID, err)
			continue
		}
		res.Tables = append(res.Tables, MaterializedTable{SchemaID: e.ID, Table: name})
	}
	for _, want := range req.Tables {
		if !slices.ContainsFunc(tables, func(e *Entity) bool { return e.ID == want }) {
			res.addError(want, errors.New("no such data table"))
		}
	}

	s.logger.Info("projectapi: database setup",
		"project", id, "created", len(res.Tables), "failed", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}

func (r *SetupResult) addError(id string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[id] = err.Error()
}
