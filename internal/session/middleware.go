package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"assetdesk/internal/gateway"
)

// CookieName carries the opaque session id.
const CookieName = "assetdesk_session"

// stateCookie and nonceCookie hold the login flow's anti-forgery state
// and replay nonce between the redirect out and the callback.
const (
	stateCookie = "assetdesk_state"
	nonceCookie = "assetdesk_nonce"
)

type ctxKey struct{}

// FromContext returns the session attached by Authenticated, or nil.
func FromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(ctxKey{}).(*Session)
	return sess
}

// SetCookie writes the session cookie for id.
func (m *Manager) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Domain:   m.opts.CookieDomain,
		Expires:  time.Now().Add(m.opts.SessionTTL),
		HttpOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.opts.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetStateCookie pins the login state to the browser for the duration
// of the round trip to the provider.
func (m *Manager) SetStateCookie(w http.ResponseWriter, state string) {
	m.setFlowCookie(w, stateCookie, state)
}

// TakeState reads and clears the login state cookie.
func (m *Manager) TakeState(w http.ResponseWriter, r *http.Request) string {
	return takeFlowCookie(w, r, stateCookie)
}

// SetNonceCookie pins the login nonce to the browser so the callback
// can verify it against the identity token.
func (m *Manager) SetNonceCookie(w http.ResponseWriter, nonce string) {
	m.setFlowCookie(w, nonceCookie, nonce)
}

// TakeNonce reads and clears the login nonce cookie.
func (m *Manager) TakeNonce(w http.ResponseWriter, r *http.Request) string {
	return takeFlowCookie(w, r, nonceCookie)
}

func (m *Manager) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int((5 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   m.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func takeFlowCookie(w http.ResponseWriter, r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	return c.Value
}

// Authenticated gates a handler behind a live session. API requests
// get a 401; anything else is redirected into the login flow. The
// session and a fresh bearer token are attached to the request
// context.
func (m *Manager) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.sessionFor(r)
		if sess == nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, sess)
		if tok := m.Fresh(ctx, sess); tok != "" {
			ctx = gateway.WithToken(ctx, tok)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) sessionFor(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	return m.store.Get(c.Value)
}
