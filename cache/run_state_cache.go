package cache

import (
	"errors"
	"time"

	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/model"
	c "github.com/patrickmn/go-cache"
)

// RunStateCache remembers the outcome of the last run of every flow.
// Finished runs expire after ttl, running ones never do.
type RunStateCache struct {
	flow.NoopObserver
	cache *c.Cache
	ttl   time.Duration
}

var _ flow.Observer = new(RunStateCache)

func NewRunStateCache(ttl time.Duration) *RunStateCache {
	if ttl <= 0 {
		ttl = c.NoExpiration
	}
	return &RunStateCache{
		cache: c.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (ch *RunStateCache) SaveRunState(state model.FlowRunState) {
	ttl := ch.ttl
	if state.State == model.FLOW_STATE_RUNNING {
		ttl = c.NoExpiration
	}
	ch.cache.Set(state.FlowId, state, ttl)
}

func (ch *RunStateCache) GetRunState(flowId string) (model.FlowRunState, bool) {
	state, found := ch.cache.Get(flowId)
	if !found {
		return model.FlowRunState{}, false
	}
	return state.(model.FlowRunState), true
}

func (ch *RunStateCache) Delete(flowId string) {
	ch.cache.Delete(flowId)
}

func (ch *RunStateCache) OnBeforeRunning(f *flow.Flow, args any) {
	if prev, ok := ch.GetRunState(f.GetId()); ok && prev.State == model.FLOW_STATE_RUNNING {
		// a restarted run keeps its start time
		return
	}
	ch.SaveRunState(model.FlowRunState{
		FlowId:    f.GetId(),
		State:     model.FLOW_STATE_RUNNING,
		StartedAt: time.Now(),
	})
}

func (ch *RunStateCache) OnAfterRunning(f *flow.Flow, result any, err error) {
	state, _ := ch.GetRunState(f.GetId())
	state.FlowId = f.GetId()
	state.EndedAt = time.Now()
	state.Result = nil
	state.Error = ""
	var precondition *flow.PreconditionError
	switch {
	case errors.As(err, &precondition):
		state.State = model.FLOW_STATE_REJECTED
		state.StartedAt = state.EndedAt
		state.Error = err.Error()
	case err != nil:
		state.State = model.FLOW_STATE_FAILED
		state.Error = err.Error()
	default:
		state.State = model.FLOW_STATE_COMPLETED
		state.Result = result
	}
	ch.SaveRunState(state)
}
