package action

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/stretchr/testify/require"
)

type funcRunner struct {
	fn func(ctx context.Context, call metadata.Call, args map[string]any) (any, error)
}

func (r *funcRunner) Name() string {
	return "FuncRunner"
}

func (r *funcRunner) Execute(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	return r.fn(ctx, call, args)
}

func newMethod(fn func(ctx context.Context, call metadata.Call, args map[string]any) (any, error)) *metadata.Method {
	s := metadata.NewService("test", &funcRunner{fn: fn})
	m := &metadata.Method{Name: "do"}
	_ = s.RegisterMethod(m)
	return m
}

func intPtr(i int) *int {
	return &i
}

func TestAction(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"defaults":                     testDefaults,
		"run before bind":              testRunUnbound,
		"bind without runner":          testBindInvalid,
		"merge and transform":          testMergeAndTransform,
		"retry budget":                 testRetryBudget,
		"policy error":                 testPolicyError,
		"restart ignores retry budget": testRestartUnbounded,
		"one run in flight":            testSerializedRun,
		"decode props with wrong type": testDecodeWrongType,
		"record round trip":            testRecord,
	} {
		t.Run(scenario, fn)
	}
}

func testDefaults(t *testing.T) {
	a, err := New(Props{})
	require.NoError(t, err)
	require.NotEmpty(t, a.GetId())
	require.True(t, a.IsWait())
	require.Equal(t, 3, a.GetRetryCount())
	require.Equal(t, ON_ERROR_STOP, a.GetOnErrorAction())
	require.EqualValues(t, 15000, a.GetTimeout().Milliseconds())
	require.Equal(t, 4, a.Remaining())

	require.NoError(t, a.Bind(newMethod(nil)))
	require.Equal(t, "do", a.GetName())
}

func testRunUnbound(t *testing.T) {
	a, err := New(Props{})
	require.NoError(t, err)
	_, err = a.Run(context.Background(), nil)
	var unbound UnboundCapabilityError
	require.ErrorAs(t, err, &unbound)
}

func testBindInvalid(t *testing.T) {
	a, err := New(Props{})
	require.NoError(t, err)
	err = a.Bind(&metadata.Method{Name: "orphan"})
	var invalid InvalidCapabilityError
	require.ErrorAs(t, err, &invalid)
}

func testMergeAndTransform(t *testing.T) {
	a, err := New(Props{
		Args:      map[string]any{"name": "static"},
		Transform: map[string]any{"id": "petId"},
	})
	require.NoError(t, err)
	var seen map[string]any
	require.NoError(t, a.Bind(newMethod(func(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
		seen = args
		return map[string]any{"id": 5, "name": args["name"]}, nil
	})))

	prev := map[string]any{"name": "prev", "other": 1}
	res, err := a.Run(context.Background(), prev)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "static", "other": 1}, seen)
	require.Equal(t, map[string]any{"petId": 5, "name": "static"}, res)
	require.Equal(t, "prev", prev["name"])
}

func testRetryBudget(t *testing.T) {
	a, err := New(Props{RetryCount: intPtr(2), OnErrorAction: "retry"})
	require.NoError(t, err)
	var calls int32
	boom := errors.New("boom")
	require.NoError(t, a.Bind(newMethod(func(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})))

	for i := 0; i < 2; i++ {
		_, err = a.Run(context.Background(), nil)
		var policy *PolicyError
		require.ErrorAs(t, err, &policy)
		require.Equal(t, ON_ERROR_RETRY, policy.Policy)
		require.True(t, a.CanRetry())
	}
	_, err = a.Run(context.Background(), nil)
	var exceeded *RetryBudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	require.False(t, a.CanRetry())

	a.Reset()
	require.True(t, a.CanRetry())
	require.Equal(t, 3, a.Remaining())
}

func testPolicyError(t *testing.T) {
	for _, policy := range []string{"ignore", "restart-flow", "stop-flow"} {
		a, err := New(Props{OnErrorAction: policy})
		require.NoError(t, err)
		require.NoError(t, a.Bind(newMethod(func(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
			return nil, errors.New("fail")
		})))
		_, err = a.Run(context.Background(), nil)
		var pe *PolicyError
		require.ErrorAs(t, err, &pe)
		var ee *ExecutorError
		require.ErrorAs(t, err, &ee)
		require.Equal(t, "do", ee.Method)
	}
}

func testRestartUnbounded(t *testing.T) {
	a, err := New(Props{RetryCount: intPtr(0), OnErrorAction: "restart-flow"})
	require.NoError(t, err)
	require.NoError(t, a.Bind(newMethod(func(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
		return nil, errors.New("fail")
	})))
	for i := 0; i < 5; i++ {
		_, err = a.Run(context.Background(), nil)
		var pe *PolicyError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, ON_ERROR_RESTART, pe.Policy)
		var exceeded *RetryBudgetExceededError
		require.False(t, errors.As(err, &exceeded))
	}
}

func testSerializedRun(t *testing.T) {
	var inFlight, peak int32
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	a, err := New(Props{})
	require.NoError(t, err)
	require.NoError(t, a.Bind(newMethod(func(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		entered <- struct{}{}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return args, nil
	})))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Run(context.Background(), nil)
			require.NoError(t, err)
		}()
	}
	<-entered
	select {
	case <-entered:
		t.Fatal("second run entered the executor while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&peak))
	require.Len(t, entered, 1)
}

func testDecodeWrongType(t *testing.T) {
	_, err := DecodeProps(map[string]any{"wait": "yes"})
	var verr model.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = DecodeProps(map[string]any{"onErrorAction": "explode"})
	require.ErrorAs(t, err, &verr)

	_, err = DecodeProps(map[string]any{"retryCount": -1})
	require.ErrorAs(t, err, &verr)

	p, err := DecodeProps(map[string]any{"wait": false, "timeout": float64(100), "retryCount": 1})
	require.NoError(t, err)
	require.False(t, *p.Wait)
	require.Equal(t, 100, *p.Timeout)
}

func testRecord(t *testing.T) {
	a, err := New(Props{Name: "fetch", Timeout: intPtr(200), OnErrorAction: "ignore"})
	require.NoError(t, err)
	m := newMethod(nil)
	require.NoError(t, a.Bind(m))

	rec := a.ToRecord()
	require.Equal(t, model.MethodRef{Service: "test", Name: "do"}, rec.Method)
	require.Equal(t, 200, rec.Timeout)

	b, err := FromRecord(rec, m)
	require.NoError(t, err)
	require.Equal(t, a.GetId(), b.GetId())
	require.Equal(t, ON_ERROR_IGNORE, b.GetOnErrorAction())
	require.Equal(t, a.GetTimeout(), b.GetTimeout())
}
