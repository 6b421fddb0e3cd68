package web

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"assetdesk/internal/session"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	s.sessions.SetStateCookie(w, state)
	s.sessions.SetNonceCookie(w, nonce)
	http.Redirect(w, r, s.sessions.LoginURL(state, nonce), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		s.log.Warn().Str("error", errMsg).Msg("provider rejected login")
		respondError(w, http.StatusUnauthorized, errors.New("login rejected by identity provider"))
		return
	}

	want := s.sessions.TakeState(w, r)
	if want == "" || want != r.URL.Query().Get("state") {
		respondError(w, http.StatusUnauthorized, errors.New("state mismatch"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, errors.New("missing authorization code"))
		return
	}

	sess, err := s.sessions.Exchange(r.Context(), code, s.sessions.TakeNonce(w, r))
	if err != nil {
		s.log.Error().Err(err).Msg("code exchange failed")
		respondError(w, http.StatusUnauthorized, errors.New("login failed"))
		return
	}

	id := s.sessions.Store().Put(sess, s.cfg.SessionTTL)
	s.sessions.SetCookie(w, id)
	landing := s.cfg.LandingURL
	if landing == "" {
		landing = "/"
	}
	http.Redirect(w, r, landing, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var sess *session.Session
	if c, err := r.Cookie(session.CookieName); err == nil {
		sess = s.sessions.Store().Get(c.Value)
		s.sessions.Store().Delete(c.Value)
	}
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, s.sessions.LogoutURL(sess), http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		respondError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	respondJSON(w, http.StatusOK, sess.Claims)
}
