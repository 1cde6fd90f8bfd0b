package projectapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagewright/guard"
)

// ConnectionTest is the body of POST .../test-connection. Either URL is
// given directly, or ConnectionID names a stored external connection whose
// payload carries a "url" (or "base_url") field.
type ConnectionTest struct {
	URL          string            `json:"url,omitempty"`
	ConnectionID string            `json:"connection_id,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// ConnectionResult reports the outcome of a connection test.
type ConnectionResult struct {
	OK        bool   `json:"ok"`
	Status    int    `json:"status,omitempty"`
	Method    string `json:"method,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

const connectionTimeout = 10 * time.Second

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ConnectionTest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target := req.URL
	if target == "" && req.ConnectionID != "" {
		e, err := s.store.GetEntity(r.Context(), id, req.ConnectionID)
		if err != nil {
			s.notFoundOr(w, err)
			return
		}
		target = connectionURL(e.Payload)
	}
	if target == "" {
		writeError(w, http.StatusBadRequest, errors.New("url or connection_id is required"))
		return
	}
	if err := s.checkURL(target); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := s.reach(r.Context(), target, req.Headers)
	s.logger.Info("projectapi: connection tested",
		"project", id, "url", target, "ok", res.OK, "status", res.Status)
	writeJSON(w, http.StatusOK, res)
}

func connectionURL(payload json.RawMessage) string {
	var p struct {
		URL     string `json:"url"`
		BaseURL string `json:"base_url"`
	}
	if json.Unmarshal(payload, &p) != nil {
		return ""
	}
	if p.URL != "" {
		return p.URL
	}
	return p.BaseURL
}

func (s *Server) checkURL(raw string) error {
	if s.allowPrivate {
		return nil
	}
	return guard.ValidateURL(raw)
}

// reach tries HEAD first and falls back to GET when the server refuses it.
func (s *Server) reach(ctx context.Context, target string, headers map[string]string) ConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client := *s.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		return s.checkURL(req.URL.String())
	}

	start := time.Now()
	var res ConnectionResult
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			res.Error = err.Error()
			break
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := client.Do(req)
		if err != nil {
			res.Error = fmt.Sprintf("%s: %v", method, err)
			break
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, guard.MaxResponseBody))
		resp.Body.Close()

		res.Method = method
		res.Status = resp.StatusCode
		if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotImplemented {
			break
		}
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	res.OK = res.Error == "" && res.Status > 0 && res.Status < 400
	return res
}
