package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/config"
)

// CompleteLoginRequest represents the request body for finishing the browser
// login hand-off with the marketplace identity service.
type CompleteLoginRequest struct {
	Token string `json:"token"`
	State string `json:"state"`
}

// CompleteLoginResponse represents the response for login completion.
type CompleteLoginResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// LogoutResponse represents the response for logout.
type LogoutResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
}

// AuthHandler handles the browser login hand-off and session endpoints.
type AuthHandler struct {
	config *config.Config
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		logger: logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/auth/login", h.StartLogin)
	mux.HandleFunc("POST /api/auth/complete-login", h.CompleteLogin)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.GetMe))
}

// StartLogin handles GET /api/auth/login
// Stashes a random state value (and the caller's return path) in the login
// session, then redirects to the marketplace identity service.
func (h *AuthHandler) StartLogin(w http.ResponseWriter, r *http.Request) {
	if h.config.Auth.LoginURL == "" {
		ErrorResponse(w, http.StatusServiceUnavailable, "Login is not configured")
		return
	}

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		h.logger.Error("Failed to generate login state", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "Failed to start login")
		return
	}
	state := hex.EncodeToString(stateBytes)

	session, err := auth.GetSession(r)
	if err != nil {
		h.logger.Warn("Failed to load login session, starting fresh", zap.Error(err))
	}
	session.Values[auth.SessionKeyState] = state
	session.Values[auth.SessionKeyOriginalURL] = safeReturnPath(r.URL.Query().Get("next"))
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Error("Failed to save login session", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "Failed to start login")
		return
	}

	loginURL, err := url.Parse(h.config.Auth.LoginURL)
	if err != nil {
		h.logger.Error("Invalid login URL in configuration", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "Failed to start login")
		return
	}
	query := loginURL.Query()
	query.Set("state", state)
	query.Set("redirect_uri", h.config.BaseURL)
	loginURL.RawQuery = query.Encode()

	http.Redirect(w, r, loginURL.String(), http.StatusFound)
}

// CompleteLogin handles POST /api/auth/complete-login
// Called by the marketplace frontend once the identity service hands back a
// JWT. Verifies the state against the login session and sets the JWT as an
// httpOnly cookie.
func (h *AuthHandler) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	var req CompleteLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Token == "" || req.State == "" {
		ErrorResponse(w, http.StatusBadRequest, "Missing token or state")
		return
	}

	session, err := auth.GetSession(r)
	if err != nil {
		h.logger.Warn("Failed to load login session", zap.Error(err))
		ErrorResponse(w, http.StatusBadRequest, "Login session expired")
		return
	}

	expectedState, _ := session.Values[auth.SessionKeyState].(string)
	if expectedState == "" || expectedState != req.State {
		h.logger.Warn("Login state mismatch")
		ErrorResponse(w, http.StatusBadRequest, "Invalid login state")
		return
	}

	cookieSettings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)
	http.SetCookie(w, &http.Cookie{
		Name:     auth.JWTCookieName,
		Value:    req.Token,
		HttpOnly: true,
		Secure:   cookieSettings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400, // 24 hours
		Path:     "/",
		Domain:   cookieSettings.Domain,
	})

	originalURL, _ := session.Values[auth.SessionKeyOriginalURL].(string)
	auth.ClearSessionValues(session)
	if err := auth.SaveSession(r, w, session); err != nil {
		h.logger.Error("Failed to save session", zap.Error(err))
	}

	if originalURL == "" {
		originalURL = "/"
	}

	h.logger.Info("Login completed", zap.String("original_url", originalURL))

	if err := WriteJSON(w, http.StatusOK, CompleteLoginResponse{
		Success:     true,
		RedirectURL: originalURL,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout
// Clears the dealroom_jwt cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookieSettings := auth.DeriveCookieSettings(h.config.BaseURL, h.config.CookieDomain)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.JWTCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   cookieSettings.Secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1, // Delete immediately
		Path:     "/",
		Domain:   cookieSettings.Domain,
	})

	h.logger.Info("User logged out")

	if err := WriteJSON(w, http.StatusOK, LogoutResponse{
		Success:     true,
		RedirectURL: "/",
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// GetMeResponse represents the response for the /api/auth/me endpoint.
type GetMeResponse struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

// GetMe handles GET /api/auth/me
// Returns information about the currently authenticated user.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok || claims == nil {
		ErrorResponse(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	response := GetMeResponse{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		IsAdmin: h.config.Admin.IsAdmin(claims.Email),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// safeReturnPath only accepts local paths for the post-login redirect;
// anything else falls back to the marketplace root.
func safeReturnPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
