package rotary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

var errBoom = errors.New("boom")

type fakeActuator struct {
	mu       sync.Mutex
	position int
	moves    []int
	queries  int
	moveErr  error
	queryErr error
	hang     bool
	delay    time.Duration

	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (a *fakeActuator) MoveTo(ctx context.Context, position int) error {
	n := a.inflight.Add(1)
	defer a.inflight.Add(-1)
	for {
		m := a.maxInflight.Load()
		if n <= m || a.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.hang {
		<-ctx.Done()
		return ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.moveErr != nil {
		return a.moveErr
	}
	a.moves = append(a.moves, position)
	a.position = position
	return nil
}

func (a *fakeActuator) CurrentPosition(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries++
	if a.queryErr != nil {
		return 0, a.queryErr
	}
	return a.position, nil
}

func (a *fakeActuator) moveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.moves)
}

type recorder struct {
	mu     sync.Mutex
	events []device.Event
}

func (r *recorder) Publish(_ context.Context, ev device.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []device.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]device.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last() device.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newTestValve(t *testing.T, model string, act Actuator) (*Valve, *recorder) {
	t.Helper()
	cat, err := models.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	entry, err := cat.Get(model)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", model, err)
	}
	v, err := New(Config{
		DeviceID:    "bench",
		Name:        "valve",
		Model:       model,
		Kind:        entry.Model.Kind,
		Geometry:    entry.Geometry,
		Labels:      entry.Labels,
		MoveTimeout: time.Second,
	}, act)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec := &recorder{}
	v.SetPublisher(rec)
	return v, rec
}

func connect(a, b valve.Port) valve.Request {
	return valve.Request{Connect: []valve.Pair{{A: a, B: b}}}
}

func TestValve_Descriptor(t *testing.T) {
	v, _ := newTestValve(t, models.Injection6Port, &fakeActuator{})
	d := v.Descriptor()
	if d.Name != "valve" || d.Model != models.Injection6Port || d.Kind != device.ComponentInjectionValve {
		t.Errorf("Descriptor() = %+v", d)
	}
	caps := device.CapabilitiesOf(v)
	if len(caps) != len(device.AllCapabilities()) {
		t.Errorf("CapabilitiesOf() = %v, want all capabilities", caps)
	}
}

func TestValve_GetPositionQueriesOnceThenCaches(t *testing.T) {
	act := &fakeActuator{position: 1}
	v, rec := newTestValve(t, models.Injection6Port, act)
	ctx := context.Background()

	if st := v.Status(); st.Known || st.Index != valve.UnknownPosition {
		t.Fatalf("initial Status() = %+v, want unknown", st)
	}

	for range 3 {
		label, err := v.GetPosition(ctx)
		if err != nil {
			t.Fatalf("GetPosition() error = %v", err)
		}
		if label != valve.LabelInject {
			t.Errorf("GetPosition() = %q, want %q", label, valve.LabelInject)
		}
	}
	if act.queries != 1 {
		t.Errorf("actuator queried %d times, want 1", act.queries)
	}
	if got := rec.types(); len(got) != 1 || got[0] != device.EventPositionSynced {
		t.Errorf("events = %v, want [position_synced]", got)
	}
}

func TestValve_SetPosition(t *testing.T) {
	act := &fakeActuator{}
	v, rec := newTestValve(t, models.Injection6Port, act)
	ctx := context.Background()

	label, err := v.SetPosition(ctx, connect(1, 2))
	if err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}
	if label != valve.LabelInject {
		t.Errorf("SetPosition() = %q, want %q", label, valve.LabelInject)
	}

	st := v.Status()
	if !st.Known || st.Index != 1 || st.Label != valve.LabelInject || st.Stale {
		t.Errorf("Status() = %+v, want known inject", st)
	}

	label, err = v.SetPosition(ctx, connect(2, 3))
	if err != nil || label != valve.LabelLoad {
		t.Fatalf("SetPosition(2,3) = %q, %v", label, err)
	}
	ev := rec.last()
	if ev.Type != device.EventPositionChanged || ev.Label != valve.LabelLoad || ev.Previous != valve.LabelInject {
		t.Errorf("last event = %+v, want load after inject", ev)
	}
	if ev.ID == "" || ev.DeviceID != "bench" || ev.Component != "valve" {
		t.Errorf("event identity = %+v", ev)
	}
}

func TestValve_SetPositionIsIdempotent(t *testing.T) {
	act := &fakeActuator{}
	v, _ := newTestValve(t, models.Injection6Port, act)
	ctx := context.Background()

	first, err := v.SetPosition(ctx, connect(3, 4))
	if err != nil {
		t.Fatalf("first SetPosition() error = %v", err)
	}
	second, err := v.SetPosition(ctx, connect(3, 4))
	if err != nil {
		t.Fatalf("second SetPosition() error = %v", err)
	}
	if first != second {
		t.Errorf("labels differ: %q then %q", first, second)
	}
	if act.moveCount() != 2 {
		t.Errorf("moves = %d, want 2 (every request reaches the hardware)", act.moveCount())
	}
}

func TestValve_SetPositionRejectsBeforeMoving(t *testing.T) {
	act := &fakeActuator{}
	v, rec := newTestValve(t, models.Injection6Port, act)
	ctx := context.Background()

	tests := []struct {
		name string
		req  valve.Request
		want error
	}{
		{name: "unknown port", req: connect(1, 42), want: valve.ErrInvalidRequest},
		{name: "self pair", req: connect(2, 2), want: valve.ErrInvalidRequest},
		{name: "unreachable", req: connect(1, 4), want: valve.ErrUnreachable},
		{name: "empty request", req: valve.Request{}, want: valve.ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.SetPosition(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("SetPosition() error = %v, want %v", err, tt.want)
			}
		})
	}

	if act.moveCount() != 0 {
		t.Errorf("moves = %d, want 0", act.moveCount())
	}
	if len(rec.types()) != 0 {
		t.Errorf("events = %v, want none", rec.types())
	}
}

func TestValve_MoveFailureMarksStale(t *testing.T) {
	act := &fakeActuator{}
	v, rec := newTestValve(t, models.Injection6Port, act)
	ctx := context.Background()

	if _, err := v.SetPosition(ctx, connect(1, 2)); err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}

	act.moveErr = errBoom
	_, err := v.SetPosition(ctx, connect(2, 3))
	if !errors.Is(err, valve.ErrDeviceCommunication) || !errors.Is(err, errBoom) {
		t.Fatalf("SetPosition() error = %v, want communication error wrapping boom", err)
	}
	var comm *valve.CommunicationError
	if !errors.As(err, &comm) || comm.Op != "move" {
		t.Errorf("error = %#v, want *CommunicationError{Op: move}", err)
	}

	st := v.Status()
	if st.Known || !st.Stale || st.Index != 1 {
		t.Errorf("Status() = %+v, want stale at the last confirmed index", st)
	}
	ev := rec.last()
	if ev.Type != device.EventPositionStale || ev.Error == "" {
		t.Errorf("last event = %+v, want position_stale with error", ev)
	}

	// A stale cache is not served; the next read goes to the hardware.
	act.moveErr = nil
	queries := act.queries
	if _, err := v.GetPosition(ctx); err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if act.queries != queries+1 {
		t.Errorf("GetPosition() did not query a stale cache")
	}
	if st := v.Status(); !st.Known || st.Stale {
		t.Errorf("Status() after resync = %+v, want fresh", st)
	}
}

func TestValve_MoveTimeout(t *testing.T) {
	act := &fakeActuator{hang: true}
	v, _ := newTestValve(t, models.Injection6Port, act)
	v.cfg.MoveTimeout = 20 * time.Millisecond

	_, err := v.SetPosition(context.Background(), connect(1, 2))
	if !errors.Is(err, valve.ErrDeviceCommunication) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SetPosition() error = %v, want timed-out communication error", err)
	}
	if !v.Status().Stale {
		t.Error("Status().Stale = false after timeout")
	}
}

func TestValve_QueryErrors(t *testing.T) {
	tests := []struct {
		name string
		act  *fakeActuator
		want error
	}{
		{name: "transport failure", act: &fakeActuator{queryErr: errBoom}, want: errBoom},
		{name: "index out of range", act: &fakeActuator{position: 7}, want: valve.ErrPositionOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestValve(t, models.Injection6Port, tt.act)
			_, err := v.GetPosition(context.Background())
			if !errors.Is(err, valve.ErrDeviceCommunication) || !errors.Is(err, tt.want) {
				t.Errorf("GetPosition() error = %v, want %v", err, tt.want)
			}
			if !v.Status().Stale {
				t.Error("Status().Stale = false")
			}
		})
	}
}

func TestValve_SelectPosition(t *testing.T) {
	act := &fakeActuator{}
	v, _ := newTestValve(t, models.SelectorName(6), act)
	ctx := context.Background()

	label, err := v.SelectPosition(ctx, "4")
	if err != nil {
		t.Fatalf("SelectPosition() error = %v", err)
	}
	if label != "4" || act.position != 3 {
		t.Errorf("SelectPosition(4) = %q at index %d, want \"4\" at 3", label, act.position)
	}

	if _, err := v.SelectPosition(ctx, "9"); !errors.Is(err, valve.ErrInvalidRequest) {
		t.Errorf("SelectPosition(9) error = %v, want ErrInvalidRequest", err)
	}
}

func TestValve_ListPositions(t *testing.T) {
	v, _ := newTestValve(t, models.DocCentral8, &fakeActuator{})

	list := v.ListPositions()
	if len(list) != 1 {
		t.Fatalf("len(ListPositions()) = %d, want 1", len(list))
	}
	if list[0].Label != "7" {
		t.Errorf("Label = %q, want 7", list[0].Label)
	}
	if len(list[0].Groups) != 2 {
		t.Errorf("Groups = %v, want two groups", list[0].Groups)
	}
}

func TestValve_OneOutstandingMove(t *testing.T) {
	act := &fakeActuator{delay: 5 * time.Millisecond}
	v, _ := newTestValve(t, models.SelectorName(8), act)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			if _, err := v.SelectPosition(context.Background(), label); err != nil {
				t.Errorf("SelectPosition(%s) error = %v", label, err)
			}
		}(valve.Port(i).String())
	}
	wg.Wait()

	if got := act.maxInflight.Load(); got != 1 {
		t.Errorf("max concurrent moves = %d, want 1", got)
	}
	if act.moveCount() != 8 {
		t.Errorf("moves = %d, want 8", act.moveCount())
	}
}

func TestNew_RequiresGeometryAndActuator(t *testing.T) {
	if _, err := New(Config{Name: "v"}, &fakeActuator{}); err == nil {
		t.Error("New() without geometry succeeded")
	}

	cat, err := models.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	e, _ := cat.Get(models.HamiltonL4)
	if _, err := New(Config{Name: "v", Geometry: e.Geometry, Labels: e.Labels}, nil); err == nil {
		t.Error("New() without actuator succeeded")
	}
}
