// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/exports"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
)

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// Resources holds all HTTP resource handlers
type Resources struct {
	Auth          *AuthHandlers
	Levels        *LevelHandlers
	Sensors       *SensorHandlers
	Users         *UserHandlers
	Roles         *RoleHandlers
	Reports       *ReportHandlers
	Notifications *NotificationHandlers
	HealthCheck   func(w http.ResponseWriter, r *http.Request)
	Metrics       http.Handler
}

// NewResources creates a new Resources instance
func NewResources(svc *dashboard.Service, sessions *auth.SessionStore, manager *exports.Manager, hub *notify.Hub) *Resources {
	return &Resources{
		Auth:          &AuthHandlers{service: svc, sessions: sessions, exports: manager},
		Levels:        &LevelHandlers{service: svc},
		Sensors:       &SensorHandlers{service: svc},
		Users:         &UserHandlers{service: svc},
		Roles:         &RoleHandlers{service: svc},
		Reports:       &ReportHandlers{exports: manager},
		Notifications: &NotificationHandlers{hub: hub},
		HealthCheck: func(w http.ResponseWriter, r *http.Request) {
			respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": nuts.GetVersion()})
		},
		Metrics: http.NotFoundHandler(),
	}
}

// SetHealthCheck sets the health check handler
func (r *Resources) SetHealthCheck(h func(w http.ResponseWriter, r *http.Request)) {
	r.HealthCheck = h
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h http.Handler) {
	r.Metrics = h
}

// Helper functions

func decodeBody(r *http.Request, dest any) *errors.APIError {
	if r.Body == nil {
		return errors.NewValidationError("request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return errors.NewValidationError("invalid request body", err)
	}
	return nil
}

func principal(r *http.Request) (*auth.Principal, *errors.APIError) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return nil, errors.NewAuthError("no user context found", nil)
	}
	return p, nil
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	if err.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s", err.Error())
		return
	}
	nuts.L.Warnf("[API] %s", err.Error())
}

// fail renders err, keeping its type when it already is an APIError.
func fail(w http.ResponseWriter, err error, msg, requestID string) {
	respondWithError(w, errors.Wrap(err, msg).WithRequestID(requestID))
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
