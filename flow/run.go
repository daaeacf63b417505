package flow

import (
	"context"
	"errors"
	"time"

	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/logger"
	"go.uber.org/zap"
)

// ErrorMarker is the key under which a recovered error is handed back to a retried or restarted step.
const ErrorMarker = "__error"

// run holds what a single execution needs, nothing in it is shared with other runs.
type run struct {
	flow     *Flow
	actions  []*action.Action
	initArgs any
	observer Observer
}

// Run executes the flow and blocks until it completes or fails.
func (f *Flow) Run(ctx context.Context, args any) (any, error) {
	r, err := f.prepare(args)
	if err != nil {
		return nil, err
	}
	f.wg.Add(1)
	defer f.wg.Done()
	return r.walk(ctx)
}

// Start checks the flow can run and executes it in the background.
func (f *Flow) Start(ctx context.Context, args any) error {
	r, err := f.prepare(args)
	if err != nil {
		return err
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		r.walk(ctx)
	}()
	return nil
}

// Wait blocks until every run of the flow, detached steps included, has settled.
func (f *Flow) Wait() {
	f.wg.Wait()
}

// Reset re-arms the retry budget of every action.
func (f *Flow) Reset() {
	for _, a := range f.GetActions() {
		a.Reset()
	}
}

func (f *Flow) prepare(args any) (*run, error) {
	f.mu.RLock()
	active := f.active
	actions := append([]*action.Action{}, f.actions...)
	observer := f.observer
	f.mu.RUnlock()

	var err error
	if !active {
		err = &PreconditionError{FlowId: f.id, Reason: "flow is not active"}
	} else if len(actions) == 0 {
		err = &PreconditionError{FlowId: f.id, Reason: "flow has no actions"}
	}
	if err != nil {
		observer.OnAfterRunning(f, nil, err)
		return nil, err
	}

	for _, a := range actions {
		a.Reset()
	}
	f.setLastRunDate(time.Now())
	return &run{
		flow:     f,
		actions:  actions,
		initArgs: freeze(args),
		observer: observer,
	}, nil
}

func (r *run) walk(ctx context.Context) (any, error) {
	f := r.flow
	obs := r.observer
	current := r.initArgs
	i := 0
	for {
		if err := ctx.Err(); err != nil {
			obs.OnAfterRunning(f, current, err)
			return current, err
		}
		if i == 0 {
			obs.OnBeforeRunning(f, current)
		}
		if i >= len(r.actions) {
			obs.OnAfterRunning(f, current, nil)
			return current, nil
		}

		act := r.actions[i]
		obs.OnActionRunning(f, act, current)
		if !act.IsWait() {
			r.detach(ctx, act, current)
			i++
			continue
		}

		result, err := act.Run(ctx, current)
		if err == nil {
			obs.OnActionSucceeded(f, act, result)
			current = result
			i++
			continue
		}

		var policy *action.PolicyError
		if !errors.As(err, &policy) {
			obs.OnActionFailed(f, act, err)
			obs.OnAfterRunning(f, current, err)
			return current, err
		}
		switch policy.Policy {
		case action.ON_ERROR_IGNORE:
			obs.OnIgnoreError(f, act, policy.Err)
			current = policy.Err
			i++
		case action.ON_ERROR_RETRY:
			obs.OnRetry(f, act, policy.Err)
			// an __error already carried by current is kept
			current = withErrorMarker(current, policy.Err)
		case action.ON_ERROR_RESTART:
			obs.OnRestartFlow(f, act, policy.Err)
			current = withErrorMarker(r.initArgs, policy.Err)
			i = 0
		default:
			obs.OnStopFlow(f, act, policy.Err)
			obs.OnActionFailed(f, act, err)
			obs.OnAfterRunning(f, current, err)
			return current, err
		}
	}
}

// detach runs a fire-and-forget step. Its outcome is reported but never redirects the walk.
func (r *run) detach(ctx context.Context, act *action.Action, input any) {
	f := r.flow
	obs := r.observer
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		current := input
		for {
			if err := ctx.Err(); err != nil {
				obs.OnActionFailed(f, act, err)
				return
			}
			result, err := act.Run(ctx, current)
			if err == nil {
				obs.OnActionSucceeded(f, act, result)
				return
			}
			var policy *action.PolicyError
			if !errors.As(err, &policy) {
				obs.OnActionFailed(f, act, err)
				return
			}
			switch policy.Policy {
			case action.ON_ERROR_IGNORE:
				obs.OnIgnoreError(f, act, policy.Err)
				return
			case action.ON_ERROR_RETRY:
				obs.OnRetry(f, act, policy.Err)
				current = withErrorMarker(current, policy.Err)
				obs.OnActionRunning(f, act, current)
			case action.ON_ERROR_RESTART:
				logger.Warn("restart requested by detached action, reported only", zap.String("flow", f.id), zap.String("action", act.GetId()))
				obs.OnRestartFlow(f, act, policy.Err)
				obs.OnActionFailed(f, act, err)
				return
			default:
				obs.OnStopFlow(f, act, policy.Err)
				obs.OnActionFailed(f, act, err)
				return
			}
		}
	}()
}

func freeze(args any) any {
	if m, ok := args.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	return args
}

// withErrorMarker returns base with err under ErrorMarker. A marker already present in base wins.
func withErrorMarker(base any, err error) map[string]any {
	out := map[string]any{ErrorMarker: err}
	if m, ok := base.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
