package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagewright/editor"
)

// runMCP serves one project's editor session over stdio.
func runMCP(ctx context.Context, cfg *editor.Config, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *projectID == "" {
		return errors.New("mcp: -project is required")
	}

	be, closeFn, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	br, err := launchBrowser(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if br != nil {
		defer br.Close()
	}

	sink := journalSinks(cfg, os.Stderr, logger)
	if sink != nil {
		defer sink.Close()
	}

	ws := newWorkspace(ctx, cfg, be, sink, br, logger)
	p, err := ws.open(ctx, *projectID)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Autosave.UnloadTimeout+5*time.Second)
		defer cancel()
		if err := ws.Close(flushCtx); err != nil {
			logger.Warn("mcp: flush", "error", err)
		}
	}()

	logger.Info("mcp: serving", "project", *projectID)
	return p.srv.Run(ctx, &mcp.StdioTransport{})
}
