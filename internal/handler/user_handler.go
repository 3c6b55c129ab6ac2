package handler

import (
	"net/http"

	"securedocs/internal/domain"
	"securedocs/internal/logging"
	"securedocs/internal/service"
)

type UserHandler struct {
	users *service.UserService
	log   logging.Logger
}

func NewUserHandler(users *service.UserService, log logging.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerIdentity(r)
	if err != nil {
		return err
	}
	users, err := h.users.ListUsers(r.Context(), caller)
	if err != nil {
		return err
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
	return nil
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) error {
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
