package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"kidpoints/internal/app"
	"kidpoints/internal/models"
	"kidpoints/internal/security"
)

// AuthHandler handles account sign-in for the device
type AuthHandler struct {
	app    *app.Application
	logger *zap.Logger

	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	states               *security.StateSigner
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(a *app.Application, providers map[string]OAuthProvider, redirectBaseURL string, states *security.StateSigner, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		app:                  a,
		logger:               logger,
		oauthProviders:       providers,
		oauthRedirectBaseURL: redirectBaseURL,
		states:               states,
	}
}

type sessionResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and signs the device in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	session, err := h.app.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.respondWithAuthError(w, "Registration failed", err)
		return
	}
	h.respondWithSession(w, r, http.StatusCreated, session)
}

// Login signs the device in with email and password
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}
	session, err := h.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithAuthError(w, "Login failed", err)
		return
	}
	h.respondWithSession(w, r, http.StatusOK, session)
}

// Logout returns the device to its guest household
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Logout(r.Context()); err != nil {
		h.respondWithAuthError(w, "Logout failed", err)
		return
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, r *http.Request, status int, session *models.Session) {
	http.SetCookie(w, security.CreateSessionCookie(r, session.Token, session.ExpiresAt))
	respondJSON(w, status, sessionResponse{
		UserID:    session.UserID,
		Email:     session.Email,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *AuthHandler) respondWithAuthError(w http.ResponseWriter, logMsg string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		respondWithError(w, h.logger, status, msg, logMsg, err)
		return
	}
	respondJSON(w, status, errorResponse{Error: msg})
}

// GoogleProvider returns the Google provider, or nil when it is not configured
func GoogleProvider(clientID, clientSecret string) *OAuthProvider {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &OAuthProvider{
		Name:  "google",
		Label: "Google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		UserInfoURL: googleUserInfoURL,
	}
}
