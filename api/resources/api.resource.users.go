package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// UserHandlers manage dashboard users
type UserHandlers struct {
	service *dashboard.Service
}

// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Router /users [get]
// @Security BearerAuth
func (h *UserHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		fail(w, err, "failed to list users", requestID)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	respondWithJSON(w, http.StatusOK, users)
}

// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Router /users/{id} [get]
// @Security BearerAuth
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load user", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// @Summary Find a user by email
// @Tags users
// @Produce json
// @Param email path string true "Email"
// @Success 200 {object} models.UserProfile
// @Failure 404 {object} errors.APIError
// @Router /users/email/{email} [get]
// @Security BearerAuth
func (h *UserHandlers) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	profile, err := h.service.GetUserByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		fail(w, err, "failed to load user", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// @Summary Create a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body models.CreateUserInput true "User"
// @Success 201 {object} models.User
// @Router /users [post]
// @Security BearerAuth
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.CreateUserInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	user, err := h.service.CreateUser(r.Context(), &in)
	if err != nil {
		fail(w, err, "failed to create user", requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// @Summary Update a user
// @Description Changing the role requires ROLE_ASSIGN
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param user body models.UpdateUserInput true "User"
// @Success 200 {object} models.User
// @Failure 403 {object} errors.APIError
// @Router /users/{id} [put]
// @Security BearerAuth
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.UpdateUserInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	user, err := h.service.UpdateUser(r.Context(), mux.Vars(r)["id"], &in)
	if err != nil {
		fail(w, err, "failed to update user", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

// @Summary Delete a user
// @Tags users
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Router /users/{id} [delete]
// @Security BearerAuth
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	if err := h.service.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, err, "failed to delete user", requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RoleHandlers manage roles and their permissions
type RoleHandlers struct {
	service *dashboard.Service
}

// @Summary List roles
// @Tags roles
// @Produce json
// @Success 200 {array} models.Role
// @Router /roles [get]
// @Security BearerAuth
func (h *RoleHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		fail(w, err, "failed to list roles", requestID)
		return
	}
	if roles == nil {
		roles = []*models.Role{}
	}
	respondWithJSON(w, http.StatusOK, roles)
}

// @Summary Get a role
// @Tags roles
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} models.Role
// @Router /roles/{id} [get]
// @Security BearerAuth
func (h *RoleHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	role, err := h.service.GetRole(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load role", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, role)
}

// @Summary Create a role
// @Tags roles
// @Accept json
// @Produce json
// @Param role body models.RoleInput true "Role"
// @Success 201 {object} models.Role
// @Router /roles [post]
// @Security BearerAuth
func (h *RoleHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.RoleInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	role, err := h.service.CreateRole(r.Context(), &in)
	if err != nil {
		fail(w, err, "failed to create role", requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, role)
}

// @Summary Update a role
// @Tags roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param role body models.RoleInput true "Role"
// @Success 200 {object} models.Role
// @Router /roles/{id} [put]
// @Security BearerAuth
func (h *RoleHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.RoleInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	role, err := h.service.UpdateRole(r.Context(), mux.Vars(r)["id"], &in)
	if err != nil {
		fail(w, err, "failed to update role", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, role)
}

// @Summary Delete a role
// @Tags roles
// @Param id path string true "Role ID"
// @Success 204 "No Content"
// @Router /roles/{id} [delete]
// @Security BearerAuth
func (h *RoleHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	if err := h.service.DeleteRole(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, err, "failed to delete role", requestID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
