package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/service"
	"github.com/portfolio/backend/pkg/auth"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, role string) (string, error)
}

// AuthHandler handles account registration, login and the current-user endpoint.
type AuthHandler struct {
	svc    service.AuthService
	tokens TokenIssuer
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc service.AuthService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if errors.Is(err, service.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "email_taken")
		return
	}
	if err != nil {
		writeServiceError(w, r, "register", err)
		return
	}
	h.respondWithToken(w, r, http.StatusCreated, u)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if err != nil {
		writeServiceError(w, r, "login", err)
		return
	}
	h.respondWithToken(w, r, http.StatusOK, u)
}

// Me handles GET /api/auth/me (auth required).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Me(r.Context(), userID)
	if errors.Is(err, service.ErrNotFound) {
		// token outlived its account
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		writeServiceError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": u})
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, code int, u *model.User) {
	token, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		writeServiceError(w, r, "issue token", err)
		return
	}
	writeJSON(w, code, authResponse{Token: token, User: u})
}
