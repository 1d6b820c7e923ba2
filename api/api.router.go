package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/itsatony/w4b_v3/server/dashboard/api/middleware"
	"github.com/itsatony/w4b_v3/server/dashboard/api/resources"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

type Router struct {
	router      *mux.Router
	auth        *middleware.Authenticator
	resources   *resources.Resources
	metricsPath string
}

// NewRouter wires every route. metricsPath is left unrouted when empty.
func NewRouter(res *resources.Resources, authn *middleware.Authenticator, metricsPath string) *Router {
	r := &Router{
		router:      mux.NewRouter(),
		auth:        authn,
		resources:   res,
		metricsPath: metricsPath,
	}

	r.setupRoutes()
	return r
}

func gate(h http.HandlerFunc, perms ...models.Permission) http.Handler {
	return middleware.RequirePermissions(perms...)(h)
}

func (r *Router) setupRoutes() {
	if r.metricsPath != "" {
		r.router.Handle(r.metricsPath, r.resources.Metrics).Methods(http.MethodGet)
	}

	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", r.resources.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", r.resources.Auth.Logout).Methods(http.MethodPost)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/auth/session", r.resources.Auth.Session).Methods(http.MethodGet)

	// Levels
	levels := protected.PathPrefix("/levels").Subrouter()
	levels.Handle("", gate(r.resources.Levels.Tree, models.PermNodeView)).Methods(http.MethodGet)
	levels.Handle("/browse", gate(r.resources.Levels.Browse, models.PermNodeView)).Methods(http.MethodGet)
	levels.Handle("/diagram", gate(r.resources.Levels.Diagram, models.PermNodeView)).Methods(http.MethodGet)
	levels.Handle("/{id}/summary", gate(r.resources.Levels.Summary, models.PermNodeView)).Methods(http.MethodGet)

	// Nodes
	nodes := protected.PathPrefix("/nodes").Subrouter()
	nodes.Handle("", gate(r.resources.Levels.CreateNode, models.PermNodeCreate)).Methods(http.MethodPost)
	nodes.Handle("/{id}", gate(r.resources.Levels.GetNode, models.PermNodeView)).Methods(http.MethodGet)
	nodes.Handle("/{id}", gate(r.resources.Levels.UpdateNode, models.PermNodeUpdate)).Methods(http.MethodPut)
	nodes.Handle("/{id}", gate(r.resources.Levels.DeleteNode, models.PermNodeDelete)).Methods(http.MethodDelete)

	// Sensors
	sensors := protected.PathPrefix("/sensors").Subrouter()
	sensors.Handle("", gate(r.resources.Sensors.ListSensors, models.PermViewSensorData)).Methods(http.MethodGet)
	sensors.Handle("", gate(r.resources.Sensors.CreateSensor, models.PermSensorCreate)).Methods(http.MethodPost)
	sensors.Handle("/kinds", gate(r.resources.Sensors.SensorKinds)).Methods(http.MethodGet)
	sensors.Handle("/filter", gate(r.resources.Sensors.FilterSensors, models.PermReportView)).Methods(http.MethodGet)
	sensors.Handle("/{id}", gate(r.resources.Sensors.GetSensor, models.PermViewSensorData)).Methods(http.MethodGet)
	sensors.Handle("/{id}", gate(r.resources.Sensors.UpdateSensor, models.PermSensorUpdate)).Methods(http.MethodPut)
	sensors.Handle("/{id}", gate(r.resources.Sensors.DeleteSensor, models.PermSensorDelete)).Methods(http.MethodDelete)

	// Users
	users := protected.PathPrefix("/users").Subrouter()
	users.Handle("", gate(r.resources.Users.ListUsers, models.PermUserView)).Methods(http.MethodGet)
	users.Handle("", gate(r.resources.Users.CreateUser, models.PermUserCreate)).Methods(http.MethodPost)
	users.Handle("/email/{email}", gate(r.resources.Users.GetUserByEmail, models.PermUserView)).Methods(http.MethodGet)
	users.Handle("/{id}", gate(r.resources.Users.GetUser, models.PermUserView)).Methods(http.MethodGet)
	users.Handle("/{id}", gate(r.resources.Users.UpdateUser, models.PermUserUpdate, models.PermRoleAssign)).Methods(http.MethodPut)
	users.Handle("/{id}", gate(r.resources.Users.DeleteUser, models.PermUserDelete)).Methods(http.MethodDelete)

	// Roles
	roles := protected.PathPrefix("/roles").Subrouter()
	roles.Handle("", gate(r.resources.Roles.ListRoles, models.PermRoleAssign, models.PermRoleCreate, models.PermRoleUpdate, models.PermRoleDelete)).Methods(http.MethodGet)
	roles.Handle("", gate(r.resources.Roles.CreateRole, models.PermRoleCreate)).Methods(http.MethodPost)
	roles.Handle("/{id}", gate(r.resources.Roles.GetRole, models.PermRoleAssign, models.PermRoleUpdate)).Methods(http.MethodGet)
	roles.Handle("/{id}", gate(r.resources.Roles.UpdateRole, models.PermRoleUpdate)).Methods(http.MethodPut)
	roles.Handle("/{id}", gate(r.resources.Roles.DeleteRole, models.PermRoleDelete)).Methods(http.MethodDelete)

	// Reports
	reports := protected.PathPrefix("/reports").Subrouter()
	reports.Handle("/export", gate(r.resources.Reports.GenerateReport, models.PermReportCreate)).Methods(http.MethodPost)
	reports.Handle("/jobs", gate(r.resources.Reports.ListJobs, models.PermReportView)).Methods(http.MethodGet)
	reports.Handle("/jobs/{id}", gate(r.resources.Reports.GetJob, models.PermReportView)).Methods(http.MethodGet)
	reports.Handle("/jobs/{id}/download", gate(r.resources.Reports.Download, models.PermReportView)).Methods(http.MethodGet)
	reports.Handle("/watch", gate(r.resources.Reports.Watch, models.PermReportView)).Methods(http.MethodPost)
	reports.Handle("/watch", gate(r.resources.Reports.Unwatch, models.PermReportView)).Methods(http.MethodDelete)

	// Notifications
	protected.HandleFunc("/notifications", r.resources.Notifications.List).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/{id}", r.resources.Notifications.Dismiss).Methods(http.MethodDelete)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
