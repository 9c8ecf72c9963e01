package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"holdings-server/internal/auth"
	"holdings-server/internal/middleware"
	"holdings-server/internal/shared/cookies"
	"holdings-server/internal/shared/errors"
	"holdings-server/internal/shared/response"
)

const exchangeTimeout = 30 * time.Second

type EveAuthHandler struct {
	service      *auth.Service
	frontendURL  string
	isConfigured bool
	logger       *slog.Logger
}

func NewEveAuthHandler(service *auth.Service, frontendURL string, isConfigured bool, logger *slog.Logger) *EveAuthHandler {
	return &EveAuthHandler{
		service:      service,
		frontendURL:  frontendURL,
		isConfigured: isConfigured,
		logger:       logger,
	}
}

// HandleAuth initiates the EVE SSO flow
func (h *EveAuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(
		"handler", "eve_oauth_init",
		"user_agent", r.UserAgent(),
		"ip", r.RemoteAddr,
	)

	if !h.isConfigured {
		response.Error(w, r, logger, errors.Unavailable("EVE SSO is not configured"))
		return
	}

	url, err := h.service.AuthURL(r.UserAgent())
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	logger.Info("Initiating EVE SSO flow")
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback processes the EVE SSO callback
func (h *EveAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	logger := h.logger.With(
		"handler", "eve_oauth_callback",
		"user_agent", r.UserAgent(),
		"ip", r.RemoteAddr,
		"has_code", query.Get("code") != "",
		"has_state", query.Get("state") != "",
	)

	if errorParam := query.Get("error"); errorParam != "" {
		logger.Warn("EVE SSO authorization denied",
			"oauth_error", errorParam,
			"error_description", query.Get("error_description"))
		redirectWithError(w, r, h.frontendURL, "oauth_denied", "Authorization was denied")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	session, signed, err := h.service.CompleteLogin(ctx, query.Get("code"), query.Get("state"), r.UserAgent())
	if err != nil {
		logger.Error("EVE SSO login failed", "error", err)
		redirectWithError(w, r, h.frontendURL, "oauth_error", "Login with EVE Online failed")
		return
	}

	cookies.SetSessionCookie(w, signed)
	logger.Info("EVE SSO login completed", "character_id", session.Character.ID)

	http.Redirect(w, r, h.frontendURL+"/?login=success", http.StatusTemporaryRedirect)
}

func (h *EveAuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookies.SessionCookieName); err == nil {
		h.service.Logout(cookie.Value)
	}
	cookies.ClearSessionCookie(w)
	response.Success(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleMe returns the character of the current session
func (h *EveAuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r)
	if session == nil {
		response.Error(w, r, h.logger, errors.Unauthorized("authentication required"))
		return
	}
	response.Success(w, http.StatusOK, session.Character)
}
