package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	id := s.Put(&Session{Claims: Claims{Email: "ana@example.com"}}, time.Hour)
	if id == "" {
		t.Fatal("Put returned empty id")
	}
	sess := s.Get(id)
	if sess == nil || sess.Claims.Email != "ana@example.com" {
		t.Fatalf("Get = %+v", sess)
	}
	if sess.ID != id {
		t.Errorf("session id = %q, want %q", sess.ID, id)
	}
	s.Delete(id)
	if s.Get(id) != nil {
		t.Error("deleted session still resolvable")
	}
}

func TestStoreExpiry(t *testing.T) {
	s := NewStore()
	id := s.Put(&Session{}, -time.Second)
	if s.Get(id) != nil {
		t.Error("expired session should not resolve")
	}
	if s.Len() != 0 {
		t.Error("expired session should be swept on access")
	}
}

func TestStoreDistinctIDs(t *testing.T) {
	s := NewStore()
	a := s.Put(&Session{}, time.Hour)
	b := s.Put(&Session{}, time.Hour)
	if a == b {
		t.Fatal("two sessions share an id")
	}
}

func testManager() *Manager {
	return &Manager{
		opts: Options{
			ClientID:        "client",
			PostLogoutURL:   "http://localhost:8085/",
			AuthLocale:      "es",
			RenewalLeadTime: 2 * time.Minute,
			SessionTTL:      time.Hour,
		},
		oauth: oauth2.Config{ClientID: "client"},
		store: NewStore(),
		log:   zerolog.Nop(),
	}
}

func TestLoginURL(t *testing.T) {
	m := testManager()
	got := m.LoginURL("state-123", "nonce-456")
	for _, want := range []string{"state=state-123", "nonce=nonce-456", "lang=es", "client_id=client"} {
		if !strings.Contains(got, want) {
			t.Errorf("LoginURL = %q, missing %q", got, want)
		}
	}
}

func TestAuthenticatedRejectsAPI(t *testing.T) {
	m := testManager()
	h := m.Authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a session")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resources", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAuthenticatedRedirectsBrowser(t *testing.T) {
	m := testManager()
	h := m.Authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without a session")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Errorf("Location = %q", loc)
	}
}

func TestAuthenticatedAttachesSession(t *testing.T) {
	m := testManager()
	id := m.store.Put(&Session{
		Claims: Claims{Email: "ana@example.com"},
		token:  &oauth2.Token{AccessToken: "tok", Expiry: time.Now().Add(time.Hour)},
	}, time.Hour)

	var got *Session
	h := m.Authenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.Claims.Email != "ana@example.com" {
		t.Errorf("session in context = %+v", got)
	}
}

func TestFreshSkipsRenewal(t *testing.T) {
	m := testManager()
	sess := &Session{token: &oauth2.Token{
		AccessToken:  "current",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	if tok := m.Fresh(httptest.NewRequest("GET", "/", nil).Context(), sess); tok != "current" {
		t.Errorf("Fresh = %q, want current token untouched", tok)
	}
}

func TestFreshWithoutRefreshToken(t *testing.T) {
	m := testManager()
	sess := &Session{token: &oauth2.Token{
		AccessToken: "current",
		Expiry:      time.Now().Add(30 * time.Second),
	}}
	if tok := m.Fresh(httptest.NewRequest("GET", "/", nil).Context(), sess); tok != "current" {
		t.Errorf("Fresh = %q, want stored token when no refresh token exists", tok)
	}
}

func TestFreshConcurrentRenewal(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"renewed","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`))
	}))
	defer idp.Close()

	m := testManager()
	m.oauth.Endpoint = oauth2.Endpoint{TokenURL: idp.URL}
	sess := &Session{token: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(30 * time.Second),
	}}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok := m.Fresh(ctx, sess); tok == "" {
				t.Error("Fresh returned an empty token")
			}
		}()
	}
	wg.Wait()

	if got := sess.Token(); got == nil || got.AccessToken != "renewed" {
		t.Errorf("session token after renewal = %+v", got)
	}
}

func TestLogoutURL(t *testing.T) {
	m := testManager()
	if got := m.LogoutURL(&Session{}); got != "http://localhost:8085/" {
		t.Errorf("no end_session_endpoint: got %q", got)
	}

	m.endSession = "https://idp.example.com/logout"
	got := m.LogoutURL(&Session{IDToken: "idtok"})
	for _, want := range []string{
		"https://idp.example.com/logout?",
		"id_token_hint=idtok",
		"client_id=client",
		"post_logout_redirect_uri=http%3A%2F%2Flocalhost%3A8085%2F",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("LogoutURL = %q, missing %q", got, want)
		}
	}
}

func TestStateCookieRoundTrip(t *testing.T) {
	m := testManager()
	rec := httptest.NewRecorder()
	m.SetStateCookie(rec, "state-123")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if got := m.TakeState(httptest.NewRecorder(), req); got != "state-123" {
		t.Errorf("TakeState = %q", got)
	}
	if got := m.TakeState(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("missing cookie should yield empty state, got %q", got)
	}
}

func TestNonceCookieRoundTrip(t *testing.T) {
	m := testManager()
	rec := httptest.NewRecorder()
	m.SetNonceCookie(rec, "nonce-456")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	if got := m.TakeNonce(httptest.NewRecorder(), req); got != "nonce-456" {
		t.Errorf("TakeNonce = %q", got)
	}
	if got := m.TakeNonce(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("missing cookie should yield empty nonce, got %q", got)
	}
}
