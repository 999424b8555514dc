// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tillgate/tilld/internal/auth"
)

// refreshCookieName is the cookie carrying the opaque refresh token.
const refreshCookieName = "tilld_refresh_token"

// refreshCookiePath scopes the cookie to the auth API so it never rides
// along on unrelated requests.
const refreshCookiePath = "/auth/v1"

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type assignRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// sessionResponse is the body returned by register, login, and refresh. The
// refresh token also travels in an HttpOnly cookie for browser clients.
type sessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, auth.CodeInvalidInput, "invalid JSON body")
		return
	}

	pair, err := s.sessions.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		s.recordOutcome("register", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("register", "success")
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, sessionBody(pair))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, auth.CodeInvalidInput, "invalid JSON body")
		return
	}

	pair, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordOutcome("login", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("login", "success")
	if s.metrics != nil {
		s.metrics.ActiveRefreshSessions.Inc()
	}
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, sessionBody(pair))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := s.refreshTokenFromRequest(r)

	pair, err := s.sessions.Refresh(r.Context(), raw)
	if err != nil {
		s.recordOutcome("refresh", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("refresh", "success")
	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, sessionBody(pair))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw := s.refreshTokenFromRequest(r)

	if err := s.sessions.Logout(r.Context(), raw); err != nil {
		s.recordOutcome("logout", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("logout", "success")
	if s.metrics != nil {
		s.metrics.ActiveRefreshSessions.Dec()
	}
	s.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, auth.CodeInvalidInput, "invalid JSON body")
		return
	}

	token, err := s.sessions.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		s.recordOutcome("forgot_password", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("forgot_password", "success")

	// The response is identical whether or not the account exists. Outside
	// production the raw token is included so manual testing works without
	// a mail pipeline.
	body := map[string]any{
		"message": "if the account exists, a reset link has been sent",
	}
	if s.devMode && token != "" {
		body["reset_token"] = token
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, auth.CodeInvalidInput, "invalid JSON body")
		return
	}

	if err := s.sessions.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.recordOutcome("reset_password", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("reset_password", "success")
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

func (s *Server) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, auth.CodeInvalidInput, "invalid JSON body")
		return
	}

	if err := s.sessions.AssignRole(r.Context(), req.Email, req.Role); err != nil {
		s.recordOutcome("assign_role", "failure")
		s.writeError(w, err)
		return
	}

	s.recordOutcome("assign_role", "success")
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the verified claims of the caller's access token. Useful
// for clients to confirm identity and permissions without decoding the JWT.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeErrorCode(w, http.StatusUnauthorized, auth.CodeUnauthenticated, "missing bearer token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     claims.Subject,
		"email":       claims.Email,
		"permissions": claims.Permissions,
	})
}

// refreshTokenFromRequest prefers the JSON body's refresh_token and falls
// back to the session cookie, so both browser and API clients work.
func (s *Server) refreshTokenFromRequest(r *http.Request) string {
	var req refreshRequest
	if r.Body != nil {
		//nolint:errcheck // an empty or invalid body falls through to the cookie
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// setRefreshCookie attaches the opaque refresh token as an HttpOnly cookie
// scoped to the auth API.
func (s *Server) setRefreshCookie(w http.ResponseWriter, raw string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    raw,
		Path:     refreshCookiePath,
		MaxAge:   int(s.refreshTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie.
func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) recordOutcome(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(operation, outcome)
	}
}

func sessionBody(pair *auth.TokenPair) sessionResponse {
	return sessionResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   pair.AccessTokenExpiresAt.UTC().Format(time.RFC3339),
	}
}
