package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Query parameters accepted by PUT .../position.
const (
	paramConnect            = "connect"
	paramDisconnect         = "disconnect"
	paramAmbiguousSwitching = "ambiguous_switching"
)

// defaultHistoryLimit mirrors the repository default.
const defaultHistoryLimit = 50

// PositionResponse is returned by the position routes.
type PositionResponse struct {
	Device    string `json:"device"`
	Component string `json:"component"`
	Position  string `json:"position"`
}

// ComponentResponse is one component with its cached rotor state.
type ComponentResponse struct {
	device.ComponentDescriptor
	Status *device.PositionStatus `json:"status,omitempty"`
}

// DeviceResponse is a device descriptor enriched with live component state.
type DeviceResponse struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Kind       device.Kind         `json:"kind"`
	Driver     string              `json:"driver"`
	Components []ComponentResponse `json:"components"`
}

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	descs := s.registry.List()
	out := make([]DeviceResponse, 0, len(descs))
	for _, d := range descs {
		out = append(out, s.deviceResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": out,
		"count":   len(out),
	})
}

// handleGetDevice returns one device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "device")
	d, err := s.registry.Describe(id)
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.deviceResponse(d))
}

func (s *Server) deviceResponse(d device.Descriptor) DeviceResponse {
	resp := DeviceResponse{
		ID:         d.ID,
		Name:       d.Name,
		Kind:       d.Kind,
		Driver:     d.Driver,
		Components: make([]ComponentResponse, 0, len(d.Components)),
	}
	for _, cd := range d.Components {
		cr := ComponentResponse{ComponentDescriptor: cd}
		if comp, err := s.registry.Component(d.ID, cd.Name); err == nil {
			if rep, ok := comp.(device.StatusReporter); ok {
				st := rep.Status()
				cr.Status = &st
			}
		}
		resp.Components = append(resp.Components, cr)
	}
	return resp
}

// getPosition serves GET .../position.
func getPosition(s *Server, comp device.Component) http.HandlerFunc {
	reader := comp.(device.PositionReader) //nolint:errcheck // route table guarantees the capability
	desc := comp.Descriptor()
	return func(w http.ResponseWriter, r *http.Request) {
		label, err := reader.GetPosition(r.Context())
		if err != nil {
			s.logger.Warn("position query failed", "device_id", deviceOf(r), "component", desc.Name, "error", err)
			writeDomainError(w, err, labelsOf(comp))
			return
		}
		writeJSON(w, http.StatusOK, PositionResponse{Device: deviceOf(r), Component: desc.Name, Position: label})
	}
}

// setPosition serves PUT .../position?connect=a,b&disconnect=a,b&ambiguous_switching.
func setPosition(s *Server, comp device.Component) http.HandlerFunc {
	setter := comp.(device.PositionSetter) //nolint:errcheck // route table guarantees the capability
	desc := comp.Descriptor()
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parsePositionQuery(r)
		if err != nil {
			writeDomainError(w, err, nil)
			return
		}
		label, err := setter.SetPosition(r.Context(), req)
		if err != nil {
			s.logger.Warn("position change failed",
				"device_id", deviceOf(r), "component", desc.Name, "request", req.String(), "error", err)
			writeDomainError(w, err, labelsOf(comp))
			return
		}
		writeJSON(w, http.StatusOK, PositionResponse{Device: deviceOf(r), Component: desc.Name, Position: label})
	}
}

// selectPosition serves PUT .../position/{label}.
func selectPosition(s *Server, comp device.Component) http.HandlerFunc {
	selector := comp.(device.PositionSelector) //nolint:errcheck // route table guarantees the capability
	desc := comp.Descriptor()
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "label")
		label, err := selector.SelectPosition(r.Context(), target)
		if err != nil {
			s.logger.Warn("position select failed",
				"device_id", deviceOf(r), "component", desc.Name, "label", target, "error", err)
			writeDomainError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, PositionResponse{Device: deviceOf(r), Component: desc.Name, Position: label})
	}
}

// listConnections serves GET .../connections as a label → groups table.
func listConnections(_ *Server, comp device.Component) http.HandlerFunc {
	lister := comp.(device.ConnectionLister) //nolint:errcheck // route table guarantees the capability
	return func(w http.ResponseWriter, _ *http.Request) {
		positions := lister.ListPositions()
		out := make(map[string][]valve.Group, len(positions))
		for _, p := range positions {
			out[p.Label] = p.Groups
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// componentHistory serves GET .../history?limit=N.
func componentHistory(s *Server, comp device.Component) http.HandlerFunc {
	desc := comp.Descriptor()
	return func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "position history is not available")
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeBadRequest(w, "limit must be a positive integer")
				return
			}
			limit = n
		}
		entries, err := s.history.GetHistory(r.Context(), deviceOf(r), desc.Name, limit)
		if err != nil {
			s.logger.Error("history query failed", "device_id", deviceOf(r), "component", desc.Name, "error", err)
			writeInternalError(w, "failed to load history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"device":    deviceOf(r),
			"component": desc.Name,
			"entries":   entries,
			"count":     len(entries),
		})
	}
}

// parsePositionQuery builds a connection request from the query string.
// connect and disconnect may repeat; each value is one "a,b" pair. Either
// may be absent: a disconnect-only request asks for any position isolating
// the named ports. ambiguous_switching present without a value means true.
func parsePositionQuery(r *http.Request) (valve.Request, error) {
	q := r.URL.Query()
	var req valve.Request

	var err error
	if req.Connect, err = parsePairs(paramConnect, q[paramConnect]); err != nil {
		return valve.Request{}, err
	}
	if req.Disconnect, err = parsePairs(paramDisconnect, q[paramDisconnect]); err != nil {
		return valve.Request{}, err
	}
	if q.Has(paramAmbiguousSwitching) {
		raw := q.Get(paramAmbiguousSwitching)
		if raw == "" {
			req.AmbiguousSwitching = true
		} else {
			b, perr := strconv.ParseBool(raw)
			if perr != nil {
				return valve.Request{}, &valve.InvalidRequestError{Reason: fmt.Sprintf("%s=%q is not a boolean", paramAmbiguousSwitching, raw)}
			}
			req.AmbiguousSwitching = b
		}
	}
	return req, nil
}

func parsePairs(param string, values []string) ([]valve.Pair, error) {
	var pairs []valve.Pair
	for _, v := range values {
		p, err := valve.ParsePair(v)
		if err != nil {
			return nil, &valve.InvalidRequestError{Reason: fmt.Sprintf("%s: %v", param, err)}
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// labelsOf returns an index → label lookup for components that list their
// positions, or nil.
func labelsOf(comp device.Component) func(int) string {
	lister, ok := comp.(device.ConnectionLister)
	if !ok {
		return nil
	}
	return func(idx int) string {
		for _, p := range lister.ListPositions() {
			if p.Index == idx {
				return p.Label
			}
		}
		return strconv.Itoa(idx)
	}
}

// deviceOf returns the device ID captured when the route was expanded.
func deviceOf(r *http.Request) string {
	if id, ok := r.Context().Value(ctxKeyDevice).(string); ok {
		return id
	}
	return ""
}
