package resources

import (
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/exports"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// AuthHandlers sign users in and out
type AuthHandlers struct {
	service  *dashboard.Service
	sessions *auth.SessionStore
	exports  *exports.Manager
}

type sessionView struct {
	UserID      string                  `json:"user_id"`
	Email       string                  `json:"email"`
	Name        string                  `json:"name,omitempty"`
	Permissions *models.UserPermissions `json:"permissions"`
}

// @Summary Sign in
// @Description Exchange credentials for a session cookie and bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResult
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /auth/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.LoginRequest
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	res, err := h.service.Login(r.Context(), &in)
	if err != nil {
		fail(w, err, "failed to sign in", requestID)
		return
	}

	sess := &auth.Session{
		Token:  res.Token,
		UserID: res.User.ID,
		Email:  res.User.Email,
		Name:   res.User.Name,
		Role:   res.User.Role.Name,
	}
	if err := h.sessions.Save(w, sess); err != nil {
		respondWithError(w, errors.NewInternalError("failed to store session", err).WithRequestID(requestID))
		return
	}
	h.exports.Controller(sessionKey(sess)).SetSession(sess.Token, sess.Email)

	respondWithJSON(w, http.StatusOK, res)
}

// @Summary Sign out
// @Description Clear the session cookie and stop the user's report pollers
// @Tags auth
// @Success 204 "No Content"
// @Router /auth/logout [post]
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.sessions.Load(r); err == nil {
		n := h.exports.Release(sessionKey(sess))
		nuts.L.Infof("[API] User %s signed out, %d pollers stopped", sess.UserID, n)
	}
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Current session
// @Description The signed-in user and their effective permissions
// @Tags auth
// @Produce json
// @Success 200 {object} sessionView
// @Failure 401 {object} errors.APIError
// @Router /auth/session [get]
// @Security BearerAuth
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(nuts.NID("req", 12)))
		return
	}
	respondWithJSON(w, http.StatusOK, sessionView{
		UserID:      p.UserID,
		Email:       p.Email,
		Name:        p.Name,
		Permissions: p.Permissions,
	})
}

func sessionKey(sess *auth.Session) string {
	if sess.UserID != "" {
		return sess.UserID
	}
	return sess.Email
}
