package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohitkumar/automate/analytics"
	"github.com/mohitkumar/automate/cache"
	"github.com/mohitkumar/automate/engine"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence/memory"
	"github.com/mohitkumar/automate/runner/core"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *Server
	engine *engine.Engine
	states *cache.RunStateCache
}

func (f *fixture) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func newFixture(t *testing.T) *fixture {
	states := cache.NewRunStateCache(time.Minute)
	metrics := analytics.NewPrometheusDataCollector(nil)
	recorder := analytics.NewRecorder(16, metrics)
	recorder.Start()
	t.Cleanup(func() { recorder.Stop() })

	registry := metadata.NewRegistry()
	eng := engine.New(registry, memory.NewMemoryStorage(), engine.WithObserver(states), engine.WithObserver(recorder))
	require.NoError(t, registry.RegisterService(core.NewService(core.NewRunner(eng))))
	t.Cleanup(func() { eng.Stop() })

	server, err := NewServer(0, eng, states, metrics.Registry())
	require.NoError(t, err)
	return &fixture{server: server, engine: eng, states: states}
}

func createGreeter(t *testing.T, f *fixture) model.FlowRecord {
	rec := f.do(t, http.MethodPost, "/flows", map[string]any{
		"name":     "greeter",
		"triggers": []string{"go"},
		"actions":  []any{
			map[string]any{"service": core.SERVICE_NAME, "method": "delay", "args": map[string]any{"ms": 10}},
			map[string]any{"service": core.SERVICE_NAME, "method": "log", "args": map[string]any{"message": "hi {$.who}"}, "retryCount": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.FlowRecord](t, rec)
}

func TestServer(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, f *fixture){
		"create and get flow":     testCreateAndGet,
		"create with bad action":  testCreateBadAction,
		"run flow and read state": testRunAndState,
		"publish event":           testPublishEvent,
		"trigger flows":           testTrigger,
		"deactivate flow":         testDeactivate,
		"add and remove action":   testActions,
		"delete flow":             testDelete,
		"list services":           testServices,
		"metrics":                 testMetrics,
		"unknown flow":            testUnknownFlow,
		"invalid body":            testInvalidBody,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newFixture(t))
		})
	}
}

func testCreateAndGet(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	require.Equal(t, "greeter", created.Name)
	require.Len(t, created.Actions, 2)
	require.Equal(t, 1, created.Actions[1].RetryCount)

	rec := f.do(t, http.MethodGet, "/flows/"+created.Id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.Id, decode[model.FlowRecord](t, rec).Id)

	rec = f.do(t, http.MethodGet, "/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]model.FlowRecord](t, rec), 1)
}

func testCreateBadAction(t *testing.T, f *fixture) {
	rec := f.do(t, http.MethodPost, "/flows", map[string]any{
		"actions": []any{map[string]any{"service": core.SERVICE_NAME, "method": "teleport"}},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/flows", map[string]any{
		"actions": []any{map[string]any{"service": core.SERVICE_NAME, "method": "log", "retryCount": -1}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.engine.Flows())
}

func testRunAndState(t *testing.T, f *fixture) {
	created := createGreeter(t, f)

	rec := f.do(t, http.MethodGet, "/flows/"+created.Id+"/state", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/flows/"+created.Id+"/run?wait=true", map[string]any{"args": map[string]any{"who": "ann"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	require.Equal(t, "ann", body["result"].(map[string]any)["who"])

	rec = f.do(t, http.MethodGet, "/flows/"+created.Id+"/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, model.FLOW_STATE_COMPLETED, decode[model.FlowRunState](t, rec).State)
}

func testPublishEvent(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodPost, "/events", map[string]any{"event": "go", "payload": map[string]any{"who": "bob"}})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		state, ok := f.states.GetRunState(created.Id)
		return ok && state.State == model.FLOW_STATE_COMPLETED
	}, 2*time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodPost, "/events", map[string]any{"payload": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func testTrigger(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodPost, "/trigger", map[string]any{"flows": []string{created.Id, "missing"}, "args": map[string]any{"who": "x"}})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		state, ok := f.states.GetRunState(created.Id)
		return ok && state.State == model.FLOW_STATE_COMPLETED
	}, 2*time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodPost, "/trigger", map[string]any{"flows": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func testDeactivate(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodPut, "/flows/"+created.Id+"/active", ActiveRequest{Active: false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, decode[model.FlowRecord](t, rec).Active)

	rec = f.do(t, http.MethodPost, "/flows/"+created.Id+"/run?wait=true", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	state, ok := f.states.GetRunState(created.Id)
	require.True(t, ok)
	require.Equal(t, model.FLOW_STATE_REJECTED, state.State)
}

func testActions(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodPost, "/flows/"+created.Id+"/actions", map[string]any{
		"id": "first", "service": core.SERVICE_NAME, "method": "log", "args": map[string]any{"message": "x"}, "position": 0,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	fl, ok := f.engine.GetFlowByID(created.Id)
	require.True(t, ok)
	require.Equal(t, "first", fl.GetActions()[0].GetId())

	rec = f.do(t, http.MethodDelete, "/flows/"+created.Id+"/actions/first", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fl.GetActions(), 2)

	rec = f.do(t, http.MethodDelete, "/flows/"+created.Id+"/actions/first", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func testDelete(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodDelete, "/flows/"+created.Id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/flows/"+created.Id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func testServices(t *testing.T, f *fixture) {
	rec := f.do(t, http.MethodGet, "/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[[]metadata.ServiceInfo](t, rec)
	require.Len(t, services, 1)
	require.Equal(t, core.SERVICE_NAME, services[0].Name)

	rec = f.do(t, http.MethodGet, "/services/"+core.SERVICE_NAME, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/services/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func testMetrics(t *testing.T, f *fixture) {
	created := createGreeter(t, f)
	rec := f.do(t, http.MethodPost, "/flows/"+created.Id+"/run?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/metrics", nil)
		return rec.Code == http.StatusOK && bytes.Contains(rec.Body.Bytes(), []byte("automate_flow_runs_total"))
	}, 2*time.Second, 10*time.Millisecond)
}

func testUnknownFlow(t *testing.T, f *fixture) {
	for _, req := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/flows/missing"},
		{http.MethodPost, "/flows/missing/run"},
		{http.MethodGet, "/flows/missing/state"},
		{http.MethodPut, "/flows/missing/active"},
	} {
		rec := f.do(t, req.method, req.path, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, req.path)
	}
}

func testInvalidBody(t *testing.T, f *fixture) {
	req := httptest.NewRequest(http.MethodPost, "/flows", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
