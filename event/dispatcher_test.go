package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRunnable struct {
	id     string
	mu     sync.Mutex
	starts []any
	err    error
}

func (s *stubRunnable) GetId() string {
	return s.id
}

func (s *stubRunnable) Start(ctx context.Context, args any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, args)
	return s.err
}

func (s *stubRunnable) Starts() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any{}, s.starts...)
}

func TestDispatcher(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, d *Dispatcher){
		"subscribe is idempotent":          testSubscribeIdempotent,
		"publish starts every subscriber":  testPublish,
		"unsubscribe stops delivery":       testUnsubscribe,
		"trigger resolves flows by id":     testTrigger,
		"trigger rejects a bad payload":    testTriggerBadPayload,
		"start errors do not stop publish": testStartError,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewDispatcher(context.Background()))
		})
	}
}

func testSubscribeIdempotent(t *testing.T, d *Dispatcher) {
	r := &stubRunnable{id: "f1"}
	d.Subscribe("go", r)
	d.Subscribe("go", r)
	require.Equal(t, []string{"f1"}, d.Subscribers("go"))

	require.NoError(t, d.Publish("go", 1))
	require.Equal(t, []any{1}, r.Starts())
}

func testPublish(t *testing.T, d *Dispatcher) {
	r1 := &stubRunnable{id: "f1"}
	r2 := &stubRunnable{id: "f2"}
	d.Subscribe("go", r1)
	d.Subscribe("go", r2)
	d.Subscribe(EventAutorun, r2)
	require.Equal(t, []string{EventAutorun, "go"}, d.Events())

	payload := map[string]any{"msg": "hi"}
	require.NoError(t, d.Publish("go", payload))
	require.Equal(t, []any{payload}, r1.Starts())
	require.Equal(t, []any{payload}, r2.Starts())

	require.NoError(t, d.Publish("nobody", nil))
}

func testUnsubscribe(t *testing.T, d *Dispatcher) {
	r := &stubRunnable{id: "f1"}
	d.Subscribe("go", r)
	d.Subscribe("stop", r)
	d.Unsubscribe("go", r)
	d.Unsubscribe("go", r)
	require.Empty(t, d.Subscribers("go"))
	require.NoError(t, d.Publish("go", nil))
	require.Empty(t, r.Starts())

	d.UnsubscribeAll(r)
	require.Empty(t, d.Events())
}

func testTrigger(t *testing.T, d *Dispatcher) {
	r1 := &stubRunnable{id: "f1"}
	r2 := &stubRunnable{id: "f2"}
	known := map[string]Runnable{"f1": r1, "f2": r2}
	d.SetResolver(func(id string) (Runnable, bool) {
		r, ok := known[id]
		return r, ok
	})

	require.NoError(t, d.Publish(EventTrigger, TriggerRequest{Flows: []string{"f1", "missing"}, Args: "a"}))
	require.NoError(t, d.Publish(EventTrigger, map[string]any{"flows": []string{"f2"}, "args": "b"}))
	require.Equal(t, []any{"a"}, r1.Starts())
	require.Equal(t, []any{"b"}, r2.Starts())
}

func testTriggerBadPayload(t *testing.T, d *Dispatcher) {
	d.SetResolver(func(id string) (Runnable, bool) { return nil, false })
	require.Error(t, d.Publish(EventTrigger, map[string]any{"flows": 42}))
}

func testStartError(t *testing.T, d *Dispatcher) {
	r1 := &stubRunnable{id: "f1", err: errors.New("inactive")}
	r2 := &stubRunnable{id: "f2"}
	d.Subscribe("go", r1)
	d.Subscribe("go", r2)
	require.NoError(t, d.Publish("go", nil))
	require.Len(t, r1.Starts(), 1)
	require.Len(t, r2.Starts(), 1)
}
