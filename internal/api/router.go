package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/edgefleet/armada/internal/api/agent"
	"github.com/edgefleet/armada/internal/api/management"
	"github.com/edgefleet/armada/internal/api/middleware"
	"github.com/edgefleet/armada/internal/api/response"
	"github.com/edgefleet/armada/internal/app"
	"github.com/edgefleet/armada/internal/auth"
)

type RouterDeps struct {
	DeviceSvc      *app.DeviceService
	GroupSvc       *app.GroupService
	JWTManager     *auth.JWTManager
	AgentTokenHash string
	AdminEmail     string
	AdminPassword  string
	CORSOrigins    string
	Logger         *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	metrics := middleware.NewMetrics()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(metrics.Middleware())

	origins := strings.Split(deps.CORSOrigins, ",")
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/metrics", metrics.Handler())

	// Agent API — used by field agents on the devices
	ingestHandler := agent.NewIngestHandler(deps.DeviceSvc)

	r.Route("/api/v1/agent", func(r chi.Router) {
		// Rate limit agent reporting: 10 req/s with burst of 20
		r.Use(middleware.RateLimit(10, 20))
		r.Use(middleware.AgentAuth(deps.AgentTokenHash))

		r.Post("/devices/{serial}/metrics", ingestHandler.ReportMetrics)
		r.Get("/devices/{serial}/configuration", ingestHandler.GetConfiguration)
	})

	// Management API — used by the fleet console
	authHandler := management.NewAuthHandler(deps.JWTManager, deps.AdminEmail, deps.AdminPassword)
	deviceHandler := management.NewDeviceHandler(deps.DeviceSvc)
	groupHandler := management.NewGroupHandler(deps.GroupSvc)

	r.Route("/api/v1/management", func(r chi.Router) {
		// Rate limit management API: 30 req/s with burst of 60
		r.Use(middleware.RateLimit(30, 60))

		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ManagementAuth(deps.JWTManager))
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.ManagementAuth(deps.JWTManager))

			// Devices
			r.Post("/devices", deviceHandler.Register)
			r.Get("/devices", deviceHandler.List)
			r.Get("/devices/search", deviceHandler.Search)
			r.Get("/devices/stale", deviceHandler.Stale)
			r.Get("/devices/statistics", deviceHandler.Statistics)
			r.Post("/devices/bulk/status", deviceHandler.BulkUpdateStatus)
			r.Post("/devices/import", deviceHandler.Import)
			r.Get("/devices/serial/{serial}", deviceHandler.GetBySerialNumber)
			r.Get("/devices/{id}", deviceHandler.Get)
			r.Patch("/devices/{id}", deviceHandler.Update)
			r.Delete("/devices/{id}", deviceHandler.Delete)
			r.Put("/devices/{id}/status", deviceHandler.UpdateStatus)
			r.Post("/devices/{id}/activate", deviceHandler.Activate)
			r.Post("/devices/{id}/deactivate", deviceHandler.Deactivate)
			r.Post("/devices/{id}/maintenance", deviceHandler.Maintenance)
			r.Post("/devices/{id}/decommission", deviceHandler.Decommission)
			r.Put("/devices/{id}/location", deviceHandler.UpdateLocation)
			r.Put("/devices/{id}/capabilities", deviceHandler.UpdateCapabilities)
			r.Put("/devices/{id}/configuration/{key}", deviceHandler.SetConfiguration)
			r.Delete("/devices/{id}/configuration/{key}", deviceHandler.RemoveConfiguration)
			r.Get("/devices/{id}/metrics", deviceHandler.Metrics)
			r.Get("/devices/{id}/health", deviceHandler.Health)
			r.Post("/devices/{id}/sync", deviceHandler.Sync)

			// Groups
			r.Post("/groups", groupHandler.Create)
			r.Get("/groups", groupHandler.List)
			r.Get("/groups/{id}", groupHandler.Get)
			r.Delete("/groups/{id}", groupHandler.Delete)
			r.Put("/groups/{id}/devices/{deviceID}", groupHandler.AddDevice)
			r.Delete("/groups/{id}/devices/{deviceID}", groupHandler.RemoveDevice)
		})
	})

	return r
}
