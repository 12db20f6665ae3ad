// Package telemetry exports valve activity as Prometheus metrics.
//
// The collector subscribes to the device event bus; drivers never call it
// directly.
package telemetry

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/benchlink-core/internal/device"
)

// Move results recorded in benchlink_valve_moves_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector records valve metrics.
type Collector interface {
	ObserveMove(deviceID, component, result string, seconds float64)
	SetPosition(deviceID, component string, position int)
	IncStale(deviceID, component string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObserveMove(string, string, string, float64) {}
func (noopCollector) SetPosition(string, string, int)             {}
func (noopCollector) IncStale(string, string)                     {}

// PrometheusCollector exposes valve metrics via Prometheus.
type PrometheusCollector struct {
	moves        *prometheus.CounterVec
	moveDuration *prometheus.HistogramVec
	position     *prometheus.GaugeVec
	stale        *prometheus.CounterVec
}

// NewPrometheusCollector registers the valve metrics with reg (the default
// registerer when nil). Registering twice on the same registry reuses the
// existing metrics.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"device", "component"}

	moves, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benchlink_valve_moves_total",
		Help: "Number of valve moves by outcome.",
	}, append(labels, "result")))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "benchlink_valve_move_seconds",
		Help:    "Time from move command to confirmed position.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, labels))
	if err != nil {
		return nil, err
	}

	position, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "benchlink_valve_position",
		Help: "Last confirmed rotor index (-1 when unknown).",
	}, labels))
	if err != nil {
		return nil, err
	}

	stale, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benchlink_valve_stale_total",
		Help: "Number of failed or timed-out valve transport calls.",
	}, labels))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{moves: moves, moveDuration: duration, position: position, stale: stale}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// ObserveMove counts one move and, for successful moves, records its
// duration.
func (p *PrometheusCollector) ObserveMove(deviceID, component, result string, seconds float64) {
	if p == nil {
		return
	}
	p.moves.WithLabelValues(deviceID, component, result).Inc()
	if result == ResultOK {
		p.moveDuration.WithLabelValues(deviceID, component).Observe(seconds)
	}
}

// SetPosition updates the position gauge.
func (p *PrometheusCollector) SetPosition(deviceID, component string, position int) {
	if p == nil {
		return
	}
	p.position.WithLabelValues(deviceID, component).Set(float64(position))
}

// IncStale counts one failed transport call.
func (p *PrometheusCollector) IncStale(deviceID, component string) {
	if p == nil {
		return
	}
	p.stale.WithLabelValues(deviceID, component).Inc()
}

// Sink adapts a Collector to the device event bus.
func Sink(c Collector) device.EventSink {
	return device.EventSinkFunc(func(_ context.Context, ev device.Event) {
		switch ev.Type {
		case device.EventPositionChanged:
			c.ObserveMove(ev.DeviceID, ev.Component, ResultOK, ev.Duration.Seconds())
			c.SetPosition(ev.DeviceID, ev.Component, ev.Position)
		case device.EventPositionSynced:
			c.SetPosition(ev.DeviceID, ev.Component, ev.Position)
		case device.EventPositionStale:
			c.IncStale(ev.DeviceID, ev.Component)
			if ev.Operation == device.OpMove {
				c.ObserveMove(ev.DeviceID, ev.Component, ResultError, ev.Duration.Seconds())
			}
		}
	})
}
