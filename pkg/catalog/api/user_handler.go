package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/envelope"
)

// RegisterUserRequest is the request body for registering a user
type RegisterUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserResponse is the response body for a user and its profile
type UserResponse struct {
	*catalog.User
	Profile *catalog.Profile `json:"profile,omitempty"`
}

// UserHandler handles HTTP requests for users and profiles
type UserHandler struct {
	service catalog.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(service catalog.Service) *UserHandler {
	return &UserHandler{service: service}
}

// Routes mounts the user routes
func (h *UserHandler) Routes(r chi.Router) {
	r.Get("/{id}", h.GetUser)
	r.Get("/{id}/profile", h.GetProfile)
}

// RegisterUser creates a user together with its profile
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, profile, err := h.service.RegisterUser(r.Context(), catalog.RegisterUserRequest{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		slog.Warn("Failed to register user", "username", req.Username, "err", err)
		writeError(w, r, err)
		return
	}

	envelope.OK(w, r, http.StatusCreated, UserResponse{User: user, Profile: profile})
}

// GetUser returns one user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, UserResponse{User: user})
}

// GetProfile returns a user's profile with its live content count
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	envelope.OK(w, r, http.StatusOK, profile)
}
