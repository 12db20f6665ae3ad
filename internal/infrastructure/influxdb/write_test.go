package influxdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, p)
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func tagsOf(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fieldsOf(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestValvePoints(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := func(typ device.EventType, op string) device.Event {
		ev := device.NewEvent(typ, "hplc", "inject")
		ev.Operation = op
		ev.Timestamp = ts
		return ev
	}

	moved := base(device.EventPositionChanged, device.OpMove)
	moved.Position = 1
	moved.Label = "inject"
	moved.Previous = "load"
	moved.Duration = 1500 * time.Millisecond

	failed := base(device.EventPositionStale, device.OpMove)
	failed.Error = "timeout"
	failed.Duration = 10 * time.Second

	synced := base(device.EventPositionSynced, device.OpQuery)
	synced.Position = 0
	synced.Label = "load"

	tests := []struct {
		name  string
		ev    device.Event
		names []string
	}{
		{"confirmed move", moved, []string{MeasurementValveMoves, MeasurementValvePosition}},
		{"failed move", failed, []string{MeasurementValveMoves}},
		{"sync", synced, []string{MeasurementValvePosition}},
		{"failed query", base(device.EventPositionStale, device.OpQuery), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := valvePoints(tt.ev)
			if len(points) != len(tt.names) {
				t.Fatalf("got %d points, want %d", len(points), len(tt.names))
			}
			for i, p := range points {
				if p.Name() != tt.names[i] {
					t.Errorf("point %d measurement = %q, want %q", i, p.Name(), tt.names[i])
				}
				if !p.Time().Equal(ts) {
					t.Errorf("point %d time = %v, want event timestamp", i, p.Time())
				}
				tags := tagsOf(p)
				if tags["device_id"] != "hplc" || tags["component"] != "inject" {
					t.Errorf("point %d tags = %v", i, tags)
				}
			}
		})
	}

	ok := valvePoints(moved)[0]
	if tagsOf(ok)["result"] != "ok" {
		t.Errorf("move result tag = %q", tagsOf(ok)["result"])
	}
	fields := fieldsOf(ok)
	if fields["duration_ms"] != 1500.0 || fields["label"] != "inject" || fields["previous"] != "load" {
		t.Errorf("move fields = %v", fields)
	}

	bad := valvePoints(failed)[0]
	if tagsOf(bad)["result"] != "error" || fieldsOf(bad)["error"] != "timeout" {
		t.Errorf("failed move point tags=%v fields=%v", tagsOf(bad), fieldsOf(bad))
	}
}

func TestSink_DropsWhenClosed(t *testing.T) {
	w := &fakeWriter{}
	c := &Client{writer: w}

	c.Sink().HandleEvent(context.Background(), device.NewEvent(device.EventPositionSynced, "d", "c"))
	if len(w.points) != 0 {
		t.Errorf("wrote %d points while closed", len(w.points))
	}
	if c.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", c.Dropped())
	}

	c.open.Store(true)
	c.Sink().HandleEvent(context.Background(), device.NewEvent(device.EventPositionSynced, "d", "c"))
	c.WritePoint("custom", map[string]string{"k": "v"}, map[string]interface{}{"value": 1.0})
	if len(w.points) != 2 {
		t.Errorf("wrote %d points, want 2", len(w.points))
	}

	c.Flush()
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.flushes != 2 {
		t.Errorf("flushes after Close = %d, want 2", w.flushes)
	}
	c.Flush()
	if w.flushes != 2 {
		t.Error("Flush after Close reached the writer")
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(config.InfluxDBConfig{}, "bench-7")
	if opts.BatchSize() != defaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", opts.BatchSize(), defaultBatchSize)
	}
	if opts.FlushInterval() != uint(defaultFlushInterval.Milliseconds()) {
		t.Errorf("FlushInterval = %d ms", opts.FlushInterval())
	}
	if opts.WriteOptions().DefaultTags()["site"] != "bench-7" {
		t.Errorf("default tags = %v, want site=bench-7", opts.WriteOptions().DefaultTags())
	}

	opts = clientOptions(config.InfluxDBConfig{BatchSize: 5, FlushInterval: 2}, "")
	if opts.BatchSize() != 5 || opts.FlushInterval() != 2000 {
		t.Errorf("BatchSize = %d, FlushInterval = %d", opts.BatchSize(), opts.FlushInterval())
	}
	if _, ok := opts.WriteOptions().DefaultTags()["site"]; ok {
		t.Error("empty site should not add a tag")
	}
}
