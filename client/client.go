// Package client talks to the project API on behalf of an editor session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/pagewright/guard"
	"github.com/hazyhaar/pagewright/projectapi"
)

// ErrStatus is wrapped by every error caused by a non-2xx response.
var ErrStatus = errors.New("client: unexpected status")

// StatusError carries the status and a bounded excerpt of the body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// Client is a project API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateProject creates a project and returns it.
func (c *Client) CreateProject(ctx context.Context, name, html string) (*projectapi.Project, error) {
	var p projectapi.Project
	err := c.do(ctx, http.MethodPost, "/projects", projectapi.CreateProjectRequest{Name: name, HTML: html}, &p)
	if err != nil {
		return nil, fmt.Errorf("client: create project: %w", err)
	}
	return &p, nil
}

// GetProject fetches a project with its document.
func (c *Client) GetProject(ctx context.Context, projectID string) (*projectapi.Project, error) {
	var p projectapi.Project
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil, &p); err != nil {
		return nil, fmt.Errorf("client: get project: %w", err)
	}
	return &p, nil
}

// SaveDocument stores the serialised document of a project.
func (c *Client) SaveDocument(ctx context.Context, projectID, html string, meta json.RawMessage, revision uint64) (*projectapi.SaveDocumentResponse, error) {
	var resp projectapi.SaveDocumentResponse
	body := projectapi.SaveDocumentRequest{HTML: html, Meta: meta, Revision: revision}
	if err := c.do(ctx, http.MethodPut, "/projects/"+url.PathEscape(projectID)+"/document", body, &resp); err != nil {
		return nil, fmt.Errorf("client: save document: %w", err)
	}
	return &resp, nil
}

// GetAutomation fetches a project's automation records.
func (c *Client) GetAutomation(ctx context.Context, projectID string) (*projectapi.Automation, error) {
	var a projectapi.Automation
	if err := c.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/automation", nil, &a); err != nil {
		return nil, fmt.Errorf("client: get automation: %w", err)
	}
	return &a, nil
}

// PostAutomation upserts automation records and returns the full set.
func (c *Client) PostAutomation(ctx context.Context, projectID string, req projectapi.AutomationRequest) (*projectapi.Automation, error) {
	var a projectapi.Automation
	if err := c.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/automation", req, &a); err != nil {
		return nil, fmt.Errorf("client: post automation: %w", err)
	}
	return &a, nil
}

// SetupDatabase materialises the project's data tables.
func (c *Client) SetupDatabase(ctx context.Context, projectID string, tables ...string) (*projectapi.SetupResult, error) {
	var res projectapi.SetupResult
	path := "/projects/" + url.PathEscape(projectID) + "/automation/setup-database"
	if err := c.do(ctx, http.MethodPost, path, projectapi.SetupRequest{Tables: tables}, &res); err != nil {
		return nil, fmt.Errorf("client: setup database: %w", err)
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := guard.LimitedReadAll(resp.Body, guard.MaxResponseBody*16)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := data
		if len(excerpt) > 512 {
			excerpt = excerpt[:512]
		}
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
