package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// SystemMetrics is the JSON snapshot served at /api/v1/metrics. Counters
// and histograms for scraping live on the Prometheus endpoint instead.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Goroutines    int            `json:"goroutines"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Devices       DeviceMetrics  `json:"devices"`
	Models        *ModelMetrics  `json:"models,omitempty"`
	Database      *DatabaseStats `json:"database,omitempty"`
}

// WSMetrics reports the WebSocket hub.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedMessages  uint64 `json:"dropped_messages"`
}

// MQTTMetrics is present only when a broker is configured.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics summarises the registry and the cached rotor states. A
// stale component is counted as stale, not known.
type DeviceMetrics struct {
	Total      int                    `json:"total"`
	Components int                    `json:"components"`
	ByKind     map[string]int         `json:"by_kind"`
	ByModel    map[string]int         `json:"by_model"`
	Known      int                    `json:"known"`
	Stale      int                    `json:"stale"`
	PerDevice  map[string]DeviceRotor `json:"per_device"`
}

// DeviceRotor is the position summary of one instrument.
type DeviceRotor struct {
	Components int      `json:"components"`
	Unknown    []string `json:"unknown,omitempty"`
	Stale      []string `json:"stale,omitempty"`
}

// ModelMetrics counts catalog entries by origin.
type ModelMetrics struct {
	Builtin int `json:"builtin"`
	Loaded  int `json:"loaded"`
}

// DatabaseStats mirrors the history store's sql.DBStats.
type DatabaseStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedMessages:  s.hub.Dropped(),
		},
		Devices: s.deviceMetrics(),
	}
	if s.mqtt != nil {
		m.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.catalog != nil {
		m.Models = modelMetrics(s.catalog)
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseStats{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deviceMetrics() DeviceMetrics {
	m := DeviceMetrics{
		ByKind:    make(map[string]int),
		ByModel:   make(map[string]int),
		PerDevice: make(map[string]DeviceRotor),
	}
	for _, d := range s.registry.List() {
		m.Total++
		rotor := DeviceRotor{Components: len(d.Components)}
		for _, cd := range d.Components {
			m.Components++
			m.ByKind[string(cd.Kind)]++
			if cd.Model != "" {
				m.ByModel[cd.Model]++
			}

			comp, err := s.registry.Component(d.ID, cd.Name)
			if err != nil {
				continue
			}
			rep, ok := comp.(device.StatusReporter)
			if !ok {
				continue
			}
			switch st := rep.Status(); {
			case st.Stale:
				m.Stale++
				rotor.Stale = append(rotor.Stale, cd.Name)
			case !st.Known:
				rotor.Unknown = append(rotor.Unknown, cd.Name)
			default:
				m.Known++
			}
		}
		m.PerDevice[d.ID] = rotor
	}
	return m
}

func modelMetrics(c *models.Catalog) *ModelMetrics {
	m := &ModelMetrics{}
	for _, e := range c.List() {
		if e.Source == models.SourceBuiltin {
			m.Builtin++
		} else {
			m.Loaded++
		}
	}
	return m
}
