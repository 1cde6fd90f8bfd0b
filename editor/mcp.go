package editor

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagewright/kit"
)

// RegisterMCP registers the session's editing tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerHTMLTool(srv)
	s.registerInsertTool(srv)
	s.registerDeleteTool(srv)
	s.registerReplaceTool(srv)
	s.registerStyleTool(srv)
	s.registerHistoryTools(srv)
	s.registerSelectTool(srv)
	s.registerSaveTool(srv)
}

// addTool registers endpoint behind the session's tool middleware.
func (s *Session) addTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	mw := kit.Chain(s.withProjectID, s.logTool(tool.Name))
	kit.RegisterMCPTool(srv, tool, mw(endpoint), decode)
}

func (s *Session) withProjectID(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		if s.project != "" {
			ctx = kit.WithProjectID(ctx, s.project)
		}
		return next(ctx, req)
	}
}

func (s *Session) logTool(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			s.logger.Debug("editor: tool call",
				"tool", name, "project", kit.GetProjectID(ctx),
				"transport", kit.GetTransport(ctx), "duration", time.Since(start), "error", err)
			return resp, err
		}
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

func str(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }

// status is the common tool response.
type status struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id,omitempty"`
	Revision uint64 `json:"revision"`
	Dirty    bool   `json:"dirty"`
}

func (s *Session) status(ok bool, id string) status {
	return status{OK: ok, ID: id, Revision: s.Revision(), Dirty: s.Dirty()}
}

// --- editor_html ---

type htmlReq struct {
	Document string `json:"document"`
}

func (s *Session) registerHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_html",
		Description: "Return the serialised HTML of the edited document, or of a linked preview document.",
		InputSchema: inputSchema(map[string]any{
			"document": str("Document name (default: the edited document)"),
		}, nil),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*htmlReq)
		var out string
		var err error
		if r.Document == "" {
			out, err = s.HTML()
		} else {
			out, err = s.DocumentHTML(r.Document)
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"html": out, "revision": s.Revision()}, nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &htmlReq{} }))
}

// --- editor_insert ---

type insertReq struct {
	Parent  string `json:"parent"`
	Index   *int   `json:"index"`
	HTML    string `json:"html"`
	Element string `json:"element"`
}

func (s *Session) registerInsertTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_insert",
		Description: "Insert an element into a parent node, either raw HTML (one element) or a new instance of a catalog element. The new node becomes the selection.",
		InputSchema: inputSchema(map[string]any{
			"parent":  str("Parent node id"),
			"index":   map[string]any{"type": "integer", "description": "Position among the parent's element children (default: append)"},
			"html":    str("Markup of a single element"),
			"element": str("Catalog element name, used when html is empty"),
		}, []string{"parent"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*insertReq)
		index := -1
		if r.Index != nil {
			index = *r.Index
		}
		var id string
		var err error
		switch {
		case r.HTML != "":
			id, err = s.Insert(r.HTML, r.Parent, index)
		case r.Element != "":
			id, err = s.InsertElement(r.Element, r.Parent, index)
		default:
			return nil, errors.New("html or element is required")
		}
		if err != nil {
			return nil, err
		}
		return s.status(true, id), nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &insertReq{} }))
}

// --- editor_delete ---

type idReq struct {
	ID string `json:"id"`
}

func (s *Session) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_delete",
		Description: "Delete a node. Required layout elements and the last column of a row are refused.",
		InputSchema: inputSchema(map[string]any{"id": str("Node id")}, []string{"id"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*idReq)
		if err := s.Delete(r.ID); err != nil {
			return nil, err
		}
		return s.status(true, r.ID), nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &idReq{} }))
}

// --- editor_replace ---

type replaceReq struct {
	ID   string `json:"id"`
	HTML string `json:"html"`
}

func (s *Session) registerReplaceTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_replace",
		Description: "Replace the inner content of a node with sanitised HTML.",
		InputSchema: inputSchema(map[string]any{
			"id":   str("Node id"),
			"html": str("New inner HTML"),
		}, []string{"id", "html"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*replaceReq)
		if err := s.ReplaceContent(r.ID, r.HTML); err != nil {
			return nil, err
		}
		return s.status(true, r.ID), nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &replaceReq{} }))
}

// --- editor_style ---

type styleReq struct {
	ID       string `json:"id"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

func (s *Session) registerStyleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_style",
		Description: "Set one inline CSS property on a node. An empty value removes it.",
		InputSchema: inputSchema(map[string]any{
			"id":       str("Node id"),
			"property": str("CSS property, e.g. color"),
			"value":    str("CSS value"),
		}, []string{"id", "property"}),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*styleReq)
		if err := s.SetStyle(r.ID, r.Property, r.Value); err != nil {
			return nil, err
		}
		return s.status(true, r.ID), nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &styleReq{} }))
}

// --- editor_undo / editor_redo ---

type emptyReq struct{}

func (s *Session) registerHistoryTools(srv *mcp.Server) {
	undo := &mcp.Tool{
		Name:        "editor_undo",
		Description: "Undo the last change.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	s.addTool(srv, undo, func(context.Context, any) (any, error) {
		return s.status(s.Undo(), ""), nil
	}, kit.DecodeJSON(func() any { return &emptyReq{} }))

	redo := &mcp.Tool{
		Name:        "editor_redo",
		Description: "Redo the last undone change.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	s.addTool(srv, redo, func(context.Context, any) (any, error) {
		return s.status(s.Redo(), ""), nil
	}, kit.DecodeJSON(func() any { return &emptyReq{} }))
}

// --- editor_select ---

type selectReq struct {
	ID       string `json:"id"`
	Selector string `json:"selector"`
}

type selectResp struct {
	ID         string       `json:"id,omitempty"`
	Element    string       `json:"element,omitempty"`
	Kind       string       `json:"kind,omitempty"`
	Matches    []string     `json:"matches,omitempty"`
	Overlay    OverlayState `json:"overlay"`
	Selectable bool         `json:"selectable"`
}

func (s *Session) registerSelectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_select",
		Description: "Select a node by id, or the first node matching a CSS selector, and describe it.",
		InputSchema: inputSchema(map[string]any{
			"id":       str("Node id"),
			"selector": str("CSS selector (tag, .class, #id, [attr=value], descendant)"),
		}, nil),
	}
	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*selectReq)
		var resp selectResp
		id := r.ID
		if id == "" && r.Selector != "" {
			ids, err := s.Find(r.Selector)
			if err != nil {
				return nil, err
			}
			resp.Matches = ids
			if len(ids) > 0 {
				id = ids[0]
			}
		}
		if id == "" {
			return nil, errors.New("id or selector is required")
		}
		resp.Selectable = s.Select(id)
		if sel := s.Selected(); resp.Selectable && sel != nil {
			resp.ID = sel.ID
			resp.Element = sel.Definition.Name
			resp.Kind = string(sel.Definition.Kind)
		}
		resp.Overlay = s.Overlays()
		return resp, nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &selectReq{} }))
}

// --- editor_save ---

func (s *Session) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editor_save",
		Description: "Save the document now.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := s.Save(ctx); err != nil {
			return nil, err
		}
		return s.status(true, ""), nil
	}
	s.addTool(srv, tool, endpoint, kit.DecodeJSON(func() any { return &emptyReq{} }))
}
