package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hazyhaar/pagewright/dbopen"
	"github.com/hazyhaar/pagewright/editor"
	"github.com/hazyhaar/pagewright/export"
	"github.com/hazyhaar/pagewright/journal"
	"github.com/hazyhaar/pagewright/mutation"
	"github.com/hazyhaar/pagewright/projectapi"
)

const doc = `<html><head><title>T</title></head><body><section data-pw-id="n1"><h1 data-pw-id="n2">Hi</h1></section></body></html>`

func newStore(t *testing.T) *projectapi.Store {
	t.Helper()
	return &projectapi.Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(projectapi.Schema))}
}

func addProject(t *testing.T, st *projectapi.Store, id string) {
	t.Helper()
	if err := st.InsertProject(context.Background(), &projectapi.Project{ID: id, Name: id, HTML: doc}); err != nil {
		t.Fatal(err)
	}
}

func TestWorkspace_FlushOnClose(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	addProject(t, st, "p1")

	var batches atomic.Int32
	sink := journal.NewCallback(func(_ context.Context, _ mutation.Batch) error {
		batches.Add(1)
		return nil
	})
	ws := newWorkspace(ctx, editor.DefaultConfig(), storeBackend{st: st}, sink, nil, slog.Default())

	p, err := ws.open(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	again, err := ws.open(ctx, "p1")
	if err != nil || again != p {
		t.Fatalf("second open = %p, %v; want the same session", again, err)
	}

	if _, err := p.sess.Insert(`<p>added</p>`, "n1", 1); err != nil {
		t.Fatal(err)
	}
	if got := batches.Load(); got != 1 {
		t.Errorf("journal batches = %d, want 1", got)
	}

	if err := ws.Close(ctx); err != nil {
		t.Fatal(err)
	}
	saved, err := st.GetProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(saved.HTML, "<p") || !strings.Contains(saved.HTML, "added</p>") {
		t.Errorf("saved html = %q, want the inserted paragraph", saved.HTML)
	}
	if saved.Revision == 0 {
		t.Error("saved revision = 0, want the editor revision")
	}
}

func TestWorkspace_UnknownProject(t *testing.T) {
	ws := newWorkspace(context.Background(), editor.DefaultConfig(), storeBackend{st: newStore(t)}, nil, nil, slog.Default())
	_, err := ws.open(context.Background(), "missing")
	if !errors.Is(err, projectapi.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRouter(t *testing.T) {
	st := newStore(t)
	cfg := editor.DefaultConfig()
	ws := newWorkspace(context.Background(), cfg, storeBackend{st: st}, nil, nil, slog.Default())
	hub := journal.NewHub(slog.Default())
	defer hub.Close()

	ts := httptest.NewServer(newRouter(st, ws, hub, cfg, slog.Default()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/projects", "application/json", strings.NewReader(`{"name":"a"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("create: status %d, want 201", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/oauth/airtable/config")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unconfigured oauth: status %d, want 404", resp.StatusCode)
	}
}

func TestRunExport(t *testing.T) {
	cfg := editor.DefaultConfig()
	cfg.Server.DBPath = filepath.Join(t.TempDir(), "pw.db")
	st, err := projectapi.OpenStore(cfg.Server.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	addProject(t, st, "p1")
	st.Close()

	tests := []struct {
		format string
		want   string
		absent string
	}{
		{"html", "<h1>Hi</h1>", "data-pw-id"},
		{"md", "# Hi", "<h1>"},
		{"json", `"markdown": "# Hi"`, "data-pw-id"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := runExport(context.Background(), cfg, []string{"-project", "p1", "-format", tt.format}, &buf)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
			if strings.Contains(buf.String(), tt.absent) {
				t.Errorf("output contains %q:\n%s", tt.absent, buf.String())
			}
		})
	}

	if err := runExport(context.Background(), cfg, nil, &bytes.Buffer{}); err == nil {
		t.Error("export without -project succeeded")
	}
}

func TestWriteBundle_UnknownFormat(t *testing.T) {
	if err := writeBundle(&bytes.Buffer{}, &export.Bundle{}, "pdf"); err == nil {
		t.Error("unknown format accepted")
	}
}
