package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/stretchr/testify/require"
)

type funcRunner func(args map[string]any) (any, error)

func (fn funcRunner) Name() string {
	return "FuncRunner"
}

func (fn funcRunner) Execute(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	return fn(args)
}

func newFlow(t *testing.T, ch *RunStateCache, run funcRunner) *flow.Flow {
	s := metadata.NewService("test", run)
	require.NoError(t, s.RegisterMethod(&metadata.Method{Name: "call"}))
	m, _ := s.Method("call")
	active := true
	f := flow.New(flow.Props{Id: "f1", Active: &active}, flow.WithObserver(ch))
	a, err := action.New(action.Props{Id: "a1"})
	require.NoError(t, err)
	require.NoError(t, a.Bind(m))
	require.NoError(t, f.AddAction(a))
	return f
}

func TestRunStateCache(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, ch *RunStateCache){
		"completed run": testCompleted,
		"failed run":    testFailed,
		"rejected run":  testRejected,
		"unknown flow":  testUnknown,
		"expiry":        testExpiry,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewRunStateCache(time.Minute))
		})
	}
}

func testCompleted(t *testing.T, ch *RunStateCache) {
	f := newFlow(t, ch, func(args map[string]any) (any, error) {
		state, ok := ch.GetRunState("f1")
		require.True(t, ok)
		require.Equal(t, model.FLOW_STATE_RUNNING, state.State)
		return map[string]any{"ok": true}, nil
	})
	_, err := f.Run(context.Background(), nil)
	require.NoError(t, err)

	state, ok := ch.GetRunState("f1")
	require.True(t, ok)
	require.Equal(t, model.FLOW_STATE_COMPLETED, state.State)
	require.Equal(t, map[string]any{"ok": true}, state.Result)
	require.False(t, state.EndedAt.Before(state.StartedAt))
}

func testFailed(t *testing.T, ch *RunStateCache) {
	f := newFlow(t, ch, func(args map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := f.Run(context.Background(), nil)
	require.Error(t, err)

	state, ok := ch.GetRunState("f1")
	require.True(t, ok)
	require.Equal(t, model.FLOW_STATE_FAILED, state.State)
	require.Contains(t, state.Error, "boom")
}

func testRejected(t *testing.T, ch *RunStateCache) {
	f := flow.New(flow.Props{Id: "f1"}, flow.WithObserver(ch))
	_, err := f.Run(context.Background(), nil)
	require.Error(t, err)

	state, ok := ch.GetRunState("f1")
	require.True(t, ok)
	require.Equal(t, model.FLOW_STATE_REJECTED, state.State)
}

func testUnknown(t *testing.T, ch *RunStateCache) {
	_, ok := ch.GetRunState("missing")
	require.False(t, ok)
}

func testExpiry(t *testing.T, ch *RunStateCache) {
	ch = NewRunStateCache(20 * time.Millisecond)
	ch.SaveRunState(model.FlowRunState{FlowId: "done", State: model.FLOW_STATE_COMPLETED})
	ch.SaveRunState(model.FlowRunState{FlowId: "busy", State: model.FLOW_STATE_RUNNING})
	time.Sleep(40 * time.Millisecond)

	_, ok := ch.GetRunState("done")
	require.False(t, ok)
	_, ok = ch.GetRunState("busy")
	require.True(t, ok)
}
