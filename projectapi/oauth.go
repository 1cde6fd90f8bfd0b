package projectapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hazyhaar/pagewright/idgen"
)

// OAuth provider names accepted under /oauth/{provider}.
const (
	ProviderGoogleSheets = "google-sheets"
	ProviderAirtable     = "airtable"
)

// AirtableEndpoint is Airtable's OAuth2 endpoint.
var AirtableEndpoint = oauth2.Endpoint{
	AuthURL:   "https://airtable.com/oauth2/v1/authorize",
	TokenURL:  "https://airtable.com/oauth2/v1/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// OAuthClient holds the registration of one OAuth application.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// NewGoogleSheetsProvider returns an oauth2.Config for read access to
// Google Sheets.
func NewGoogleSheetsProvider(c OAuthClient) *oauth2.Config {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/spreadsheets.readonly"}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// NewAirtableProvider returns an oauth2.Config for Airtable. Airtable
// requires PKCE.
func NewAirtableProvider(c OAuthClient) *oauth2.Config {
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{"data.records:read", "schema.bases:read"}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     AirtableEndpoint,
	}
}

// OAuthConfigResponse is what the editor needs to start an authorization
// flow. CodeVerifier must be sent back to /oauth/{provider}/exchange.
type OAuthConfigResponse struct {
	Provider     string   `json:"provider"`
	ClientID     string   `json:"client_id"`
	AuthURL      string   `json:"auth_url"`
	RedirectURL  string   `json:"redirect_url,omitempty"`
	Scopes       []string `json:"scopes"`
	State        string   `json:"state"`
	CodeVerifier string   `json:"code_verifier,omitempty"`
}

// ExchangeRequest is the body of POST /oauth/{provider}/exchange.
type ExchangeRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// ExchangeResponse carries the token obtained for a connection.
type ExchangeResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

var newState = idgen.NanoID(24)

func (s *Server) provider(w http.ResponseWriter, r *http.Request) (string, *oauth2.Config, bool) {
	name := chi.URLParam(r, "provider")
	cfg, ok := s.oauth[name]
	if !ok || cfg.ClientID == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("oauth provider %q is not configured", name))
		return name, nil, false
	}
	return name, cfg, true
}

func (s *Server) handleOAuthConfig(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.provider(w, r)
	if !ok {
		return
	}
	resp := OAuthConfigResponse{
		Provider:    name,
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		Scopes:      cfg.Scopes,
		State:       newState(),
	}
	var opts []oauth2.AuthCodeOption
	if name == ProviderAirtable {
		resp.CodeVerifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(resp.CodeVerifier))
	} else {
		opts = append(opts, oauth2.AccessTypeOffline)
	}
	resp.AuthURL = cfg.AuthCodeURL(resp.State, opts...)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOAuthExchange(w http.ResponseWriter, r *http.Request) {
	name, cfg, ok := s.provider(w, r)
	if !ok {
		return
	}
	var req ExchangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, errors.New("code is required"))
		return
	}
	var opts []oauth2.AuthCodeOption
	if req.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(req.CodeVerifier))
	}
	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, s.client)
	tok, err := cfg.Exchange(ctx, req.Code, opts...)
	if err != nil {
		s.logger.Warn("projectapi: oauth exchange failed", "provider", name, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("oauth exchange: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, ExchangeResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	})
}
