package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohitkumar/automate/branch"
	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/metadata"
	"github.com/stretchr/testify/require"
)

type published struct {
	event   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, payload: payload})
	return nil
}

type fixture struct {
	publisher *recordingPublisher
	runner    *Runner
	service   *metadata.Service
}

func (f *fixture) call(t *testing.T, name string, timeout time.Duration, args map[string]any) (any, error) {
	m, ok := f.service.Method(name)
	require.True(t, ok)
	return f.runner.Execute(context.Background(), metadata.Call{
		ActionId:   "a1",
		ActionName: name,
		Timeout:    timeout,
		Method:     m,
	}, args)
}

func TestCoreRunner(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, f *fixture){
		"log returns its args":         testLog,
		"delay waits":                  testDelay,
		"delay bounded by timeout":     testDelayTimeout,
		"link triggers a flow":         testLink,
		"split triggers flows":         testSplit,
		"switch triggers the match":    testSwitch,
		"switch rejects unknown rules": testSwitchInvalid,
		"set variable":                 testSetVariable,
		"emit publishes":               testEmit,
		"required argument missing":    testRequired,
	} {
		t.Run(scenario, func(t *testing.T) {
			p := &recordingPublisher{}
			r := NewRunner(p)
			fn(t, &fixture{publisher: p, runner: r, service: NewService(r)})
		})
	}
}

func testLog(t *testing.T, f *fixture) {
	args := map[string]any{"message": "hello {$.name}", "name": "ann"}
	res, err := f.call(t, "log", time.Second, args)
	require.NoError(t, err)
	require.Equal(t, args, res)
}

func testDelay(t *testing.T, f *fixture) {
	start := time.Now()
	res, err := f.call(t, "delay", time.Second, map[string]any{"ms": 30})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"ms": 30}, res)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func testDelayTimeout(t *testing.T, f *fixture) {
	_, err := f.call(t, "delay", 20*time.Millisecond, map[string]any{"ms": 5000})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func testLink(t *testing.T, f *fixture) {
	args := map[string]any{"flow": "f2", "x": 1}
	_, err := f.call(t, "link", time.Second, args)
	require.NoError(t, err)
	require.Equal(t, []published{{
		event:   event.EventTrigger,
		payload: event.TriggerRequest{Flows: []string{"f2"}, Args: args},
	}}, f.publisher.events)
}

func testSplit(t *testing.T, f *fixture) {
	_, err := f.call(t, "split", time.Second, map[string]any{"subflows": []any{"f2", "f3"}})
	require.NoError(t, err)
	require.Len(t, f.publisher.events, 1)
	req := f.publisher.events[0].payload.(event.TriggerRequest)
	require.Equal(t, []string{"f2", "f3"}, req.Flows)
}

func testSwitch(t *testing.T, f *fixture) {
	args := map[string]any{
		"property": "count",
		"count":    20,
		"cases": []any{
			map[string]any{"rule": "otherwise", "flow": "F2"},
			map[string]any{"rule": ">", "value": "10", "flow": "F1"},
		},
	}
	res, err := f.call(t, "switch", time.Second, args)
	require.NoError(t, err)
	require.Equal(t, args, res)
	require.Len(t, f.publisher.events, 1)
	req := f.publisher.events[0].payload.(event.TriggerRequest)
	require.Equal(t, []string{"F1"}, req.Flows)
}

func testSwitchInvalid(t *testing.T, f *fixture) {
	_, err := f.call(t, "switch", time.Second, map[string]any{
		"property": "count",
		"cases":    []any{map[string]any{"rule": "roughly", "flow": "F1"}},
	})
	var invalid branch.InvalidRuleError
	require.ErrorAs(t, err, &invalid)
	require.Empty(t, f.publisher.events)
}

func testSetVariable(t *testing.T, f *fixture) {
	args := map[string]any{"variables": map[string]any{"mode": "fast"}, "x": 1}
	res, err := f.call(t, "setVariable", time.Second, args)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"_variables": map[string]any{"mode": "fast"}, "x": 1}, res)
	require.Contains(t, args, "variables")
}

func testEmit(t *testing.T, f *fixture) {
	_, err := f.call(t, "emit", time.Second, map[string]any{"event": "done", "payload": map[string]any{"ok": true}})
	require.NoError(t, err)
	require.Equal(t, []published{{event: "done", payload: map[string]any{"ok": true}}}, f.publisher.events)
}

func testRequired(t *testing.T, f *fixture) {
	_, err := f.call(t, "link", time.Second, map[string]any{})
	require.Error(t, err)
	_, err = f.call(t, "log", time.Second, map[string]any{"message": 42})
	require.Error(t, err)
}
