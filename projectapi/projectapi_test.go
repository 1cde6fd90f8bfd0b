package projectapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagewright/dbopen"
)

func newServer(t *testing.T, opts ...Option) (*Server, *Store) {
	t.Helper()
	st := &Store{DB: dbopen.OpenMemory(t, dbopen.WithSchema(Schema))}
	return New(st, opts...), st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createProject(t *testing.T, h http.Handler, name string) *Project {
	t.Helper()
	rec := do(t, h, "POST", "/projects", CreateProjectRequest{Name: name, HTML: "<body></body>"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body)
	}
	return decode[*Project](t, rec)
}

func TestProjects(t *testing.T) {
	srv, _ := newServer(t)
	p := createProject(t, srv, "landing")
	if p.ID == "" {
		t.Fatal("project has no id")
	}
	rec := do(t, srv, "GET", "/projects", nil)
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q, want req_ prefix", rec.Header().Get("X-Request-ID"))
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	rec = do(t, srv, "PUT", "/projects/"+p.ID+"/document", SaveDocumentRequest{
		HTML: "<body><h1>Hi</h1></body>", Meta: json.RawMessage(`{"title":"Hi"}`), Revision: 7,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[SaveDocumentResponse](t, rec); got.Revision != 7 {
		t.Errorf("revision = %d, want 7", got.Revision)
	}

	got := decode[*Project](t, do(t, srv, "GET", "/projects/"+p.ID, nil))
	if got.HTML != "<body><h1>Hi</h1></body>" {
		t.Errorf("html = %q", got.HTML)
	}
	if string(got.Meta) != `{"title":"Hi"}` {
		t.Errorf("meta = %s", got.Meta)
	}

	list := decode[[]*Project](t, do(t, srv, "GET", "/projects", nil))
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("list = %+v, want one project %s", list, p.ID)
	}
	if list[0].HTML != "" {
		t.Errorf("list carries html %q, want none", list[0].HTML)
	}

	if rec := do(t, srv, "DELETE", "/projects/"+p.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}
	if rec := do(t, srv, "GET", "/projects/"+p.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status %d, want 404", rec.Code)
	}
}

func TestProjects_BadRequests(t *testing.T) {
	srv, _ := newServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing name", "POST", "/projects", CreateProjectRequest{}, http.StatusBadRequest},
		{"invalid json", "POST", "/projects", "{", http.StatusBadRequest},
		{"unknown project", "GET", "/projects/nope", nil, http.StatusNotFound},
		{"save unknown", "PUT", "/projects/nope/document", SaveDocumentRequest{HTML: "x"}, http.StatusNotFound},
		{"automation unknown", "GET", "/projects/nope/automation", nil, http.StatusNotFound},
		{"trigger unknown", "POST", "/projects/nope/automation/triggers", `{"on":"submit"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, srv, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestAutomation(t *testing.T) {
	srv, _ := newServer(t)
	p := createProject(t, srv, "shop")
	base := "/projects/" + p.ID + "/automation"

	rec := do(t, srv, "POST", base+"/triggers", `{"on":"form_submit","form":"n4"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("trigger: status %d, body %s", rec.Code, rec.Body)
	}
	trig := decode[*Entity](t, rec)
	if trig.ID == "" || trig.Kind != KindTrigger {
		t.Errorf("trigger = %+v", trig)
	}

	rec = do(t, srv, "POST", base+"/data-tables",
		`{"id":"t1","name":"contacts","columns":[{"name":"email","type":"text"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("data table: status %d, body %s", rec.Code, rec.Body)
	}
	if rec := do(t, srv, "POST", base+"/data-tables", `{"name":"drop table"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad table name: status %d, want 400", rec.Code)
	}
	if rec := do(t, srv, "POST", base+"/data-bindings", `[1,2]`); rec.Code != http.StatusBadRequest {
		t.Errorf("array payload: status %d, want 400", rec.Code)
	}

	rec = do(t, srv, "POST", base, AutomationRequest{
		DataBindings: []json.RawMessage{json.RawMessage(`{"table":"t1","element":"n9"}`)},
		Connections:  []json.RawMessage{json.RawMessage(`{"id":"c1","url":"https://example.com"}`)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk: status %d, body %s", rec.Code, rec.Body)
	}
	a := decode[Automation](t, rec)
	if len(a.Triggers) != 1 || len(a.DataTables) != 1 || len(a.DataBindings) != 1 || len(a.Connections) != 1 {
		t.Fatalf("automation = %d/%d/%d/%d, want 1/1/1/1",
			len(a.Triggers), len(a.DataTables), len(a.DataBindings), len(a.Connections))
	}

	tables := decode[[]*Entity](t, do(t, srv, "GET", base+"/data-tables", nil))
	if len(tables) != 1 || tables[0].ID != "t1" {
		t.Fatalf("data tables = %+v, want [t1]", tables)
	}

	if rec := do(t, srv, "DELETE", base+"/data-tables/t1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status %d, want 204", rec.Code)
	}
	if rec := do(t, srv, "DELETE", base+"/data-tables/t1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: status %d, want 404", rec.Code)
	}
	// Kind-scoped: a connection id is not a data table.
	if rec := do(t, srv, "DELETE", base+"/data-tables/c1", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete connection via data-tables: status %d, want 404", rec.Code)
	}
}

func TestSetupDatabase(t *testing.T) {
	srv, st := newServer(t)
	p := createProject(t, srv, "crm")
	base := "/projects/" + p.ID + "/automation"

	do(t, srv, "POST", base+"/data-tables",
		`{"id":"t1","name":"contacts","columns":[{"name":"email","type":"text"},{"name":"age","type":"integer"}]}`)
	do(t, srv, "POST", base+"/data-tables",
		`{"id":"t2","name":"broken","columns":[]}`)

	rec := do(t, srv, "POST", base+"/setup-database", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("setup: status %d, body %s", rec.Code, rec.Body)
	}
	res := decode[SetupResult](t, rec)
	if len(res.Tables) != 1 || res.Tables[0].SchemaID != "t1" {
		t.Fatalf("tables = %+v, want t1 only", res.Tables)
	}
	if !strings.HasPrefix(res.Tables[0].Table, "dt_") || !strings.HasSuffix(res.Tables[0].Table, "_contacts") {
		t.Errorf("table = %q", res.Tables[0].Table)
	}
	if _, ok := res.Errors["t2"]; !ok {
		t.Errorf("errors = %v, want an entry for t2", res.Errors)
	}

	var n int
	err := st.DB.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`,
		res.Tables[0].Table).Scan(&n)
	if err != nil || n != 1 {
		t.Fatalf("table exists = %d (%v), want 1", n, err)
	}

	// Idempotent, and filtered by id.
	res = decode[SetupResult](t, do(t, srv, "POST", base+"/setup-database", SetupRequest{Tables: []string{"t1", "zz"}}))
	if len(res.Tables) != 1 {
		t.Errorf("second run tables = %+v, want 1", res.Tables)
	}
	if _, ok := res.Errors["zz"]; !ok {
		t.Errorf("errors = %v, want an entry for zz", res.Errors)
	}
}

func TestTestConnection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	t.Run("private blocked", func(t *testing.T) {
		srv, _ := newServer(t)
		p := createProject(t, srv, "x")
		rec := do(t, srv, "POST", "/projects/"+p.ID+"/automation/test-connection", ConnectionTest{URL: upstream.URL})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("fallback to get", func(t *testing.T) {
		srv, _ := newServer(t, WithAllowPrivate())
		p := createProject(t, srv, "x")
		rec := do(t, srv, "POST", "/projects/"+p.ID+"/automation/test-connection", ConnectionTest{
			URL: upstream.URL, Headers: map[string]string{"Authorization": "Bearer k"},
		})
		res := decode[ConnectionResult](t, rec)
		if !res.OK || res.Method != http.MethodGet || res.Status != http.StatusOK {
			t.Errorf("result = %+v, want ok via GET", res)
		}
	})

	t.Run("stored connection", func(t *testing.T) {
		srv, _ := newServer(t, WithAllowPrivate())
		p := createProject(t, srv, "x")
		base := "/projects/" + p.ID + "/automation"
		do(t, srv, "POST", base+"/external-connections", `{"id":"c1","base_url":"`+upstream.URL+`"}`)
		res := decode[ConnectionResult](t, do(t, srv, "POST", base+"/test-connection", ConnectionTest{ConnectionID: "c1"}))
		if res.OK || res.Status != http.StatusUnauthorized {
			t.Errorf("result = %+v, want status 401 and not ok", res)
		}
	})

	t.Run("unsafe scheme", func(t *testing.T) {
		srv, _ := newServer(t)
		p := createProject(t, srv, "x")
		rec := do(t, srv, "POST", "/projects/"+p.ID+"/automation/test-connection", ConnectionTest{URL: "file:///etc/passwd"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestOAuthConfig(t *testing.T) {
	srv, _ := newServer(t,
		WithOAuth(ProviderAirtable, NewAirtableProvider(OAuthClient{ClientID: "air", RedirectURL: "http://localhost/cb"})),
		WithOAuth(ProviderGoogleSheets, NewGoogleSheetsProvider(OAuthClient{ClientID: "goog"})),
	)

	air := decode[OAuthConfigResponse](t, do(t, srv, "GET", "/oauth/airtable/config", nil))
	u, err := url.Parse(air.AuthURL)
	if err != nil {
		t.Fatal(err)
	}
	if u.Host != "airtable.com" {
		t.Errorf("host = %q, want airtable.com", u.Host)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Errorf("auth url %q lacks a PKCE challenge", air.AuthURL)
	}
	if q.Get("state") != air.State || air.State == "" {
		t.Errorf("state = %q, url state %q", air.State, q.Get("state"))
	}
	if air.CodeVerifier == "" {
		t.Error("airtable config has no code verifier")
	}

	goog := decode[OAuthConfigResponse](t, do(t, srv, "GET", "/oauth/google-sheets/config", nil))
	if !strings.Contains(goog.AuthURL, "access_type=offline") {
		t.Errorf("google auth url = %q, want offline access", goog.AuthURL)
	}
	if len(goog.Scopes) != 1 || !strings.Contains(goog.Scopes[0], "spreadsheets") {
		t.Errorf("scopes = %v", goog.Scopes)
	}

	if rec := do(t, srv, "GET", "/oauth/dropbox/config", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown provider: status %d, want 404", rec.Code)
	}
}

func TestOAuthExchange(t *testing.T) {
	verifiers := make(chan string, 1)
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		verifiers <- r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","refresh_token":"ref","expires_in":3600}`))
	}))
	defer tokens.Close()

	cfg := &oauth2.Config{
		ClientID: "air",
		Endpoint: oauth2.Endpoint{AuthURL: tokens.URL + "/auth", TokenURL: tokens.URL + "/token"},
	}
	srv, _ := newServer(t, WithOAuth(ProviderAirtable, cfg))

	rec := do(t, srv, "POST", "/oauth/airtable/exchange", ExchangeRequest{Code: "c", CodeVerifier: "v123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	tok := decode[ExchangeResponse](t, rec)
	if tok.AccessToken != "tok" || tok.RefreshToken != "ref" {
		t.Errorf("token = %+v", tok)
	}
	if got := <-verifiers; got != "v123" {
		t.Errorf("code_verifier = %q, want v123", got)
	}

	if rec := do(t, srv, "POST", "/oauth/airtable/exchange", ExchangeRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing code: status %d, want 400", rec.Code)
	}
}
