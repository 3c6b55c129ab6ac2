package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"securedocs/internal/auth"
	"securedocs/internal/domain"
	"securedocs/internal/logging"
	"securedocs/internal/service"
)

type AuthHandler struct {
	users *service.UserService
	log   logging.Logger
}

func NewAuthHandler(users *service.UserService, log logging.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

const emailVerifiedMessage = "Email verified successfully"

func callerIdentity(r *http.Request) (domain.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	res, err := h.users.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.log.Info(r.Context(), "[Signup] verification link issued")
	writeJSON(w, http.StatusCreated, res)
	return nil
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	res, err := h.users.IssueVerification(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.users.RedeemVerification(r.Context(), req.Token); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: emailVerifiedMessage})
	return nil
}

// VerifyEmailLink serves the plain link that is sealed at signup.
func (h *AuthHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) error {
	if err := h.users.RedeemVerification(r.Context(), r.URL.Query().Get("token")); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: emailVerifiedMessage})
	return nil
}

func (h *AuthHandler) VerifySealed(w http.ResponseWriter, r *http.Request) error {
	if err := h.users.RedeemSealedVerification(r.Context(), chi.URLParam(r, "sealed")); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: emailVerifiedMessage})
	return nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	session, err := h.users.Login(r.Context(), req.Email, req.Password, req.UserType)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, session)
	return nil
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	user, err := h.users.Me(r.Context(), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}
