package flow

import "github.com/mohitkumar/automate/action"

// Observer receives the lifecycle notifications of flow runs.
type Observer interface {
	OnBeforeRunning(f *Flow, args any)
	OnAfterRunning(f *Flow, result any, err error)
	OnActionRunning(f *Flow, a *action.Action, args any)
	OnActionSucceeded(f *Flow, a *action.Action, result any)
	OnActionFailed(f *Flow, a *action.Action, err error)
	OnIgnoreError(f *Flow, a *action.Action, err error)
	OnRetry(f *Flow, a *action.Action, err error)
	OnRestartFlow(f *Flow, a *action.Action, err error)
	OnStopFlow(f *Flow, a *action.Action, err error)
}

// PropertyObserver is notified after every mutation of a flow.
type PropertyObserver interface {
	OnPropUpdated(f *Flow, prop string, prev any, next any)
}

type PropertyObserverFunc func(f *Flow, prop string, prev any, next any)

func (fn PropertyObserverFunc) OnPropUpdated(f *Flow, prop string, prev any, next any) {
	fn(f, prop, prev, next)
}

// NoopObserver can be embedded to implement only part of Observer.
type NoopObserver struct{}

var _ Observer = NoopObserver{}

func (NoopObserver) OnBeforeRunning(f *Flow, args any) {}
func (NoopObserver) OnAfterRunning(f *Flow, result any, err error) {}
func (NoopObserver) OnActionRunning(f *Flow, a *action.Action, args any) {}
func (NoopObserver) OnActionSucceeded(f *Flow, a *action.Action, result any) {}
func (NoopObserver) OnActionFailed(f *Flow, a *action.Action, err error) {}
func (NoopObserver) OnIgnoreError(f *Flow, a *action.Action, err error) {}
func (NoopObserver) OnRetry(f *Flow, a *action.Action, err error) {}
func (NoopObserver) OnRestartFlow(f *Flow, a *action.Action, err error) {}
func (NoopObserver) OnStopFlow(f *Flow, a *action.Action, err error) {}

// Observers fans every notification out in order.
type Observers []Observer

var _ Observer = Observers{}

func (o Observers) OnBeforeRunning(f *Flow, args any) {
	for _, obs := range o {
		obs.OnBeforeRunning(f, args)
	}
}

func (o Observers) OnAfterRunning(f *Flow, result any, err error) {
	for _, obs := range o {
		obs.OnAfterRunning(f, result, err)
	}
}

func (o Observers) OnActionRunning(f *Flow, a *action.Action, args any) {
	for _, obs := range o {
		obs.OnActionRunning(f, a, args)
	}
}

func (o Observers) OnActionSucceeded(f *Flow, a *action.Action, result any) {
	for _, obs := range o {
		obs.OnActionSucceeded(f, a, result)
	}
}

func (o Observers) OnActionFailed(f *Flow, a *action.Action, err error) {
	for _, obs := range o {
		obs.OnActionFailed(f, a, err)
	}
}

func (o Observers) OnIgnoreError(f *Flow, a *action.Action, err error) {
	for _, obs := range o {
		obs.OnIgnoreError(f, a, err)
	}
}

func (o Observers) OnRetry(f *Flow, a *action.Action, err error) {
	for _, obs := range o {
		obs.OnRetry(f, a, err)
	}
}

func (o Observers) OnRestartFlow(f *Flow, a *action.Action, err error) {
	for _, obs := range o {
		obs.OnRestartFlow(f, a, err)
	}
}

func (o Observers) OnStopFlow(f *Flow, a *action.Action, err error) {
	for _, obs := range o {
		obs.OnStopFlow(f, a, err)
	}
}
