package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagewright/autosave"
	"github.com/hazyhaar/pagewright/client"
	"github.com/hazyhaar/pagewright/editor"
	"github.com/hazyhaar/pagewright/internal/browser"
	"github.com/hazyhaar/pagewright/journal"
	"github.com/hazyhaar/pagewright/projectapi"
)

// backend loads project documents and saves editor snapshots, either
// straight to the local store or through a remote project API.
type backend interface {
	Load(ctx context.Context, projectID string) (string, error)
	Saver(projectID string) autosave.Saver
}

type storeBackend struct{ st *projectapi.Store }

func (b storeBackend) Load(ctx context.Context, id string) (string, error) {
	p, err := b.st.GetProject(ctx, id)
	if err != nil {
		return "", err
	}
	return p.HTML, nil
}

func (b storeBackend) Saver(id string) autosave.Saver {
	return autosave.SaverFunc(func(ctx context.Context, snap autosave.Snapshot) error {
		return b.st.SaveDocument(ctx, id, snap.HTML, nil, snap.Revision)
	})
}

type remoteBackend struct{ c *client.Client }

func (b remoteBackend) Load(ctx context.Context, id string) (string, error) {
	p, err := b.c.GetProject(ctx, id)
	if err != nil {
		return "", err
	}
	return p.HTML, nil
}

func (b remoteBackend) Saver(id string) autosave.Saver {
	return &client.ProjectSaver{Client: b.c, ProjectID: id}
}

// workspace keeps one editor session per open project.
type workspace struct {
	ctx     context.Context
	cfg     *editor.Config
	backend backend
	sink    journal.Sink
	browser *browser.Browser
	logger  *slog.Logger

	mu       sync.Mutex
	projects map[string]*openProject
	wg       sync.WaitGroup
}

type openProject struct {
	sess   *editor.Session
	srv    *mcp.Server
	page   *browser.Page
	cancel context.CancelFunc
}

// newWorkspace creates a workspace. ctx bounds every background goroutine
// started for a session. sink and br may be nil.
func newWorkspace(ctx context.Context, cfg *editor.Config, be backend, sink journal.Sink, br *browser.Browser, logger *slog.Logger) *workspace {
	return &workspace{
		ctx:      ctx,
		cfg:      cfg,
		backend:  be,
		sink:     sink,
		browser:  br,
		logger:   logger,
		projects: make(map[string]*openProject),
	}
}

// open returns the session of a project, starting it on first use.
func (w *workspace) open(ctx context.Context, projectID string) (*openProject, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.projects[projectID]; ok {
		return p, nil
	}

	src, err := w.backend.Load(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("workspace: load %s: %w", projectID, err)
	}

	pctx, cancel := context.WithCancel(w.ctx)
	p := &openProject{cancel: cancel}
	opts := []editor.Option{
		editor.WithConfig(w.cfg),
		editor.WithProject(projectID),
		editor.WithSaver(w.backend.Saver(projectID)),
		editor.WithLogger(w.logger.With("project", projectID)),
	}
	if w.sink != nil {
		opts = append(opts, editor.WithListener(journal.Listener(pctx, w.sink, w.logger)))
	}
	if w.browser != nil {
		page, err := w.browser.Open(ctx, src)
		if err != nil {
			cancel()
			return nil, err
		}
		p.page = page
		opts = append(opts, editor.WithLayout(page))
	}

	sess, err := editor.Open(src, opts...)
	if err != nil {
		cancel()
		if p.page != nil {
			p.page.Close()
		}
		return nil, err
	}
	p.sess = sess

	p.srv = mcp.NewServer(&mcp.Implementation{Name: "pagewright", Version: version}, nil)
	sess.RegisterMCP(p.srv)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		sess.Autosave().Run(pctx)
	}()

	w.projects[projectID] = p
	w.logger.Info("workspace: project opened", "project", projectID)
	return p, nil
}

// Close flushes unsaved work of every session and stops them.
func (w *workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	projects := w.projects
	w.projects = make(map[string]*openProject)
	w.mu.Unlock()

	for _, p := range projects {
		p.cancel()
	}
	w.wg.Wait()

	var errs []error
	for id, p := range projects {
		if p.sess.Dirty() {
			if err := p.sess.Save(ctx); err != nil {
				errs = append(errs, fmt.Errorf("workspace: flush %s: %w", id, err))
			}
		}
		if p.page != nil {
			p.page.Close()
		}
	}
	return errors.Join(errs...)
}
