package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagewright/editor"
	"github.com/hazyhaar/pagewright/journal"
	"github.com/hazyhaar/pagewright/projectapi"
)

func runServe(ctx context.Context, cfg *editor.Config, logger *slog.Logger) error {
	st, err := projectapi.OpenStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	br, err := launchBrowser(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if br != nil {
		defer br.Close()
	}

	hub := journal.NewHub(logger)
	sink := journalSinks(cfg, os.Stdout, logger, hub)
	defer sink.Close()

	ws := newWorkspace(ctx, cfg, storeBackend{st: st}, sink, br, logger)
	handler := newRouter(st, ws, hub, cfg, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("pagewright: listening", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pagewright: shutdown", "error", err)
	}
	if err := ws.Close(shutdownCtx); err != nil {
		logger.Warn("pagewright: flush sessions", "error", err)
	}
	logger.Info("pagewright: stopped")
	return nil
}

// newRouter mounts the project API, the live-preview hub and one MCP
// endpoint per project.
func newRouter(st *projectapi.Store, ws *workspace, hub *journal.Hub, cfg *editor.Config, logger *slog.Logger) http.Handler {
	opts := []projectapi.Option{projectapi.WithLogger(logger), projectapi.WithLive(hub)}
	if c := cfg.OAuth.Google; c.ClientID != "" {
		opts = append(opts, projectapi.WithOAuth(projectapi.ProviderGoogleSheets,
			projectapi.NewGoogleSheetsProvider(projectapi.OAuthClient(c))))
	}
	if c := cfg.OAuth.Airtable; c.ClientID != "" {
		opts = append(opts, projectapi.WithOAuth(projectapi.ProviderAirtable,
			projectapi.NewAirtableProvider(projectapi.OAuthClient(c))))
	}
	api := projectapi.New(st, opts...)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		p, err := ws.open(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			logger.Warn("pagewright: mcp session", "error", err)
			return nil
		}
		return p.srv
	}, nil)

	r := chi.NewRouter()
	r.Handle("/mcp/{id}", mcpHandler)
	r.Mount("/", api)
	return r
}
