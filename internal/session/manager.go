package session

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Options configures the relying party.
type Options struct {
	Issuer        string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	PostLogoutURL string
	Scopes        []string
	AuthLocale    string

	// RenewalLeadTime is how far before access-token expiry a silent
	// refresh is attempted.
	RenewalLeadTime time.Duration
	SessionTTL      time.Duration
	CookieDomain    string
	CookieSecure    bool
}

// Manager drives the authorization code flow against the provider and
// owns the session store.
type Manager struct {
	opts     Options
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
	store    *Store
	log      zerolog.Logger

	// endSession is the provider's RP-initiated logout endpoint, empty
	// when discovery does not advertise one.
	endSession string
}

// NewManager discovers the provider's endpoints and builds the relying
// party.
func NewManager(ctx context.Context, opts Options, log zerolog.Logger) (*Manager, error) {
	provider, err := oidc.NewProvider(ctx, opts.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		log.Warn().Err(err).Msg("could not read provider metadata, logout falls back to local")
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email"}
	}
	return &Manager{
		opts:     opts,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		oauth: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		store:      NewStore(),
		log:        log,
		endSession: meta.EndSessionEndpoint,
	}, nil
}

// Store exposes the session store.
func (m *Manager) Store() *Store { return m.store }

// LoginURL builds the provider's authorization URL for the given
// anti-forgery state and replay nonce. The UI locale rides along so
// the hosted login page renders in the deployment's language.
func (m *Manager) LoginURL(state, nonce string) string {
	params := []oauth2.AuthCodeOption{}
	if nonce != "" {
		params = append(params, oidc.Nonce(nonce))
	}
	if m.opts.AuthLocale != "" {
		params = append(params, oauth2.SetAuthURLParam("lang", m.opts.AuthLocale))
	}
	return m.oauth.AuthCodeURL(state, params...)
}

// Exchange redeems an authorization code, verifies the identity token
// against the login's nonce and materializes a session. Claim
// extraction failures degrade to empty claims rather than failing the
// login.
func (m *Manager) Exchange(ctx context.Context, code, nonce string) (*Session, error) {
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("token response carried no id_token")
	}
	idToken, err := m.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, fmt.Errorf("id_token nonce does not match the login request")
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		m.log.Warn().Err(err).Msg("could not extract identity claims")
		claims = Claims{}
	}
	return &Session{token: tok, IDToken: rawID, Claims: claims}, nil
}

// Fresh returns a valid access token for the session, refreshing it
// when expiry is within the renewal lead time. A refresh failure
// returns the stored token; the backend's 401 then drives re-login.
func (m *Manager) Fresh(ctx context.Context, sess *Session) string {
	tok := sess.Token()
	if tok == nil {
		return ""
	}
	needsRenewal := !tok.Expiry.IsZero() && time.Until(tok.Expiry) < m.opts.RenewalLeadTime
	if !needsRenewal || tok.RefreshToken == "" {
		return tok.AccessToken
	}

	renewed, err := m.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		m.log.Warn().Err(err).Str("session", sess.ID).Msg("token refresh failed")
		return tok.AccessToken
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = tok.RefreshToken
	}
	sess.setToken(renewed)
	return renewed.AccessToken
}

// LogoutURL builds the provider's RP-initiated logout URL for the
// session. Providers without an end_session_endpoint get a plain
// redirect to the post-logout page.
func (m *Manager) LogoutURL(sess *Session) string {
	if m.endSession == "" {
		return m.opts.PostLogoutURL
	}
	q := url.Values{}
	if sess != nil && sess.IDToken != "" {
		q.Set("id_token_hint", sess.IDToken)
	}
	q.Set("client_id", m.opts.ClientID)
	q.Set("post_logout_redirect_uri", m.opts.PostLogoutURL)
	return m.endSession + "?" + q.Encode()
}
