package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/benchlink-core/internal/device"
)

// Measurements written by BenchLink.
const (
	// MeasurementValveMoves holds one point per move attempt.
	MeasurementValveMoves = "valve_moves"

	// MeasurementValvePosition holds one point per confirmed rotor index.
	MeasurementValvePosition = "valve_position"
)

// WriteValveEvent records a position event.
//
// Moves (confirmed or failed) land in valve_moves with their duration;
// every confirmed index (move or query) also lands in valve_position.
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteValveEvent(ev device.Event) {
	for _, p := range valvePoints(ev) {
		c.write(p)
	}
}

// valvePoints converts an event to zero or more points.
func valvePoints(ev device.Event) []*write.Point {
	tags := map[string]string{
		"device_id": ev.DeviceID,
		"component": ev.Component,
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var points []*write.Point
	switch ev.Type {
	case device.EventPositionChanged:
		points = append(points, movePoint(tags, ev, true, ts), positionPoint(tags, ev, ts))
	case device.EventPositionSynced:
		points = append(points, positionPoint(tags, ev, ts))
	case device.EventPositionStale:
		if ev.Operation == device.OpMove {
			points = append(points, movePoint(tags, ev, false, ts))
		}
	}
	return points
}

func movePoint(tags map[string]string, ev device.Event, ok bool, ts time.Time) *write.Point {
	moveTags := map[string]string{"result": "ok"}
	if !ok {
		moveTags["result"] = "error"
	}
	for k, v := range tags {
		moveTags[k] = v
	}

	fields := map[string]interface{}{
		"duration_ms": float64(ev.Duration) / float64(time.Millisecond),
	}
	if ok {
		fields["position"] = int64(ev.Position)
		fields["label"] = ev.Label
		if ev.Previous != "" {
			fields["previous"] = ev.Previous
		}
	} else {
		fields["error"] = ev.Error
	}
	return write.NewPoint(MeasurementValveMoves, moveTags, fields, ts)
}

func positionPoint(tags map[string]string, ev device.Event, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementValvePosition, tags, map[string]interface{}{
		"position": int64(ev.Position),
		"label":    ev.Label,
	}, ts)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.write(write.NewPoint(measurement, tags, fields, time.Now()))
}

// Sink adapts the client to the device event bus.
func (c *Client) Sink() device.EventSink {
	return device.EventSinkFunc(func(_ context.Context, ev device.Event) {
		c.WriteValveEvent(ev)
	})
}
