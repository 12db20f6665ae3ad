package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/benchlink-core/internal/auth"
	"github.com/nerrad567/benchlink-core/internal/device"
)

// capabilityRoute binds one (capability, operation) pair to its handler.
// An empty capability applies to every component.
type capabilityRoute struct {
	capability device.Capability
	method     string
	suffix     string
	permission auth.Permission
	handler    func(s *Server, comp device.Component) http.HandlerFunc
}

// capabilityRoutes is the complete table of component routes. It is
// expanded once per registered component when the router is built, so a
// component only gets the routes its capabilities allow.
var capabilityRoutes = []capabilityRoute{
	{device.CapPositionRead, http.MethodGet, "/position", auth.PermDeviceRead, getPosition},
	{device.CapPositionSet, http.MethodPut, "/position", auth.PermDeviceOperate, setPosition},
	{device.CapConnectionList, http.MethodGet, "/connections", auth.PermDeviceRead, listConnections},
	{device.CapPositionSelect, http.MethodPut, "/position/{label}", auth.PermDeviceOperate, selectPosition},
	{"", http.MethodGet, "/history", auth.PermDeviceRead, componentHistory},
}

// buildRouter creates the HTTP router with all routes and middleware.
// Component routes reflect the registry at the time of the call.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "operation not supported by this component")
	})

	// Prometheus exposition lives at the root, outside the versioned API.
	if s.telemetry.Prometheus && s.gatherer != nil {
		r.Handle(s.telemetry.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.requirePermission(auth.PermDeviceRead, s.handleMetrics))
			r.Get(s.wsCfg.Path, s.requirePermission(auth.PermDeviceRead, s.handleWebSocket))

			r.Get("/devices", s.requirePermission(auth.PermDeviceRead, s.handleListDevices))
			r.Get("/devices/{device}", s.requirePermission(auth.PermDeviceRead, s.handleGetDevice))
			s.mountComponentRoutes(r)

			r.Get("/models", s.requirePermission(auth.PermDeviceRead, s.handleListModels))
			r.Get("/models/{name}", s.requirePermission(auth.PermDeviceRead, s.handleGetModel))
		})
	})

	return r
}

// mountComponentRoutes expands capabilityRoutes for every registered
// component into literal paths.
func (s *Server) mountComponentRoutes(r chi.Router) {
	mounted := 0
	for _, d := range s.registry.List() {
		for _, cd := range d.Components {
			comp, err := s.registry.Component(d.ID, cd.Name)
			if err != nil {
				s.logger.Warn("component vanished while mounting routes", "device_id", d.ID, "component", cd.Name)
				continue
			}
			for _, rt := range capabilityRoutes {
				if rt.capability != "" && !cd.Has(rt.capability) {
					continue
				}
				path := fmt.Sprintf("/devices/%s/%s%s", d.ID, cd.Name, rt.suffix)
				r.Method(rt.method, path, withDevice(d.ID, s.requirePermission(rt.permission, rt.handler(s, comp))))
				mounted++
			}
		}
	}
	s.logger.Debug("component routes mounted", "routes", mounted)
}

// withDevice records the owning device ID for handlers built per component.
func withDevice(id string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyDevice, id)))
	}
}

// handleHealth reports liveness plus the state of optional dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			status = "degraded"
			checks["mqtt"] = "disconnected"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"devices": s.registry.Len(),
		"checks":  checks,
	})
}
