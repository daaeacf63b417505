package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/persistence"
	"github.com/mohitkumar/automate/util"
	"go.uber.org/zap"
)

type FlowNotFoundError struct {
	Id string
}

func (e FlowNotFoundError) Error() string {
	return fmt.Sprintf("flow %s not found", e.Id)
}

type Option func(e *Engine)

// WithObserver adds an observer to every flow the engine holds.
func WithObserver(o flow.Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// Engine owns the flows, keeps them persisted and routes events to them.
type Engine struct {
	dispatcher *event.Dispatcher
	registry   *metadata.Registry
	storage    persistence.Storage
	observers  flow.Observers

	mu    sync.RWMutex
	flows map[string]*flow.Flow

	ctx    context.Context
	cancel context.CancelFunc
}

var _ flow.PropertyObserver = new(Engine)

func New(registry *metadata.Registry, storage persistence.Storage, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		dispatcher: event.NewDispatcher(ctx),
		registry:   registry,
		storage:    storage,
		flows:      make(map[string]*flow.Flow),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dispatcher.SetResolver(func(id string) (event.Runnable, bool) {
		f, ok := e.GetFlowByID(id)
		return f, ok
	})
	return e
}

func (e *Engine) Dispatcher() *event.Dispatcher {
	return e.dispatcher
}

func (e *Engine) Registry() *metadata.Registry {
	return e.registry
}

func (e *Engine) flowOptions() []flow.Option {
	return []flow.Option{
		flow.WithObserver(e.observers),
		flow.WithPropertyObserver(e),
		flow.WithBinder(e.dispatcher),
	}
}

func (e *Engine) resolveMethod(ref model.MethodRef) (*metadata.Method, error) {
	return e.registry.FindMethod(ref.Service, ref.Name)
}

// Initialize rebuilds the stored flows. Actions whose method is no longer registered are dropped.
func (e *Engine) Initialize() error {
	records, err := e.storage.FindRecords(nil)
	if err != nil {
		return err
	}
	for _, rec := range records {
		f, err := flow.FromRecord(rec, e.resolveMethod, e.flowOptions()...)
		if err != nil {
			logger.Error("skipping stored flow", zap.String("flow", rec.Id), zap.Error(err))
			continue
		}
		e.mu.Lock()
		e.flows[f.GetId()] = f
		e.mu.Unlock()
	}
	logger.Info("flows loaded", zap.Int("count", len(records)))
	return nil
}

// Start publishes the autorun event.
func (e *Engine) Start() error {
	logger.Info("starting flow engine")
	return e.dispatcher.Publish(event.EventAutorun, nil)
}

// Stop cancels the runs in flight and waits for them to settle.
func (e *Engine) Stop() error {
	logger.Info("stopping flow engine")
	e.cancel()
	for _, f := range e.Flows() {
		f.Wait()
	}
	return nil
}

// CreateFlow builds a flow owned by the engine, storing it when save is set.
func (e *Engine) CreateFlow(props flow.Props, save bool) (*flow.Flow, error) {
	if len(props.Id) != 0 {
		if _, ok := e.GetFlowByID(props.Id); ok {
			return nil, persistence.RecordExistsError{Id: props.Id}
		}
	}
	f := flow.New(props, e.flowOptions()...)
	if save {
		if err := e.storage.CreateRecord(f.ToRecord()); err != nil {
			f.Destroy()
			return nil, err
		}
	}
	e.mu.Lock()
	e.flows[f.GetId()] = f
	e.mu.Unlock()
	logger.Info("flow created", zap.String("flow", f.GetId()), zap.String("name", f.GetName()))
	return f, nil
}

func (e *Engine) DestroyFlow(id string) error {
	e.mu.Lock()
	f, ok := e.flows[id]
	delete(e.flows, id)
	e.mu.Unlock()
	if !ok {
		return FlowNotFoundError{Id: id}
	}
	f.Destroy()
	if _, err := e.storage.RemoveRecord(persistence.ById(id)); err != nil {
		return err
	}
	logger.Info("flow destroyed", zap.String("flow", id))
	return nil
}

func (e *Engine) GetFlowByID(id string) (*flow.Flow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.flows[id]
	return f, ok
}

// GetFlowByName returns the oldest flow called name.
func (e *Engine) GetFlowByName(name string) (*flow.Flow, bool) {
	for _, f := range e.Flows() {
		if f.GetName() == name {
			return f, true
		}
	}
	return nil, false
}

// Flows returns every flow, oldest first.
func (e *Engine) Flows() []*flow.Flow {
	e.mu.RLock()
	out := make([]*flow.Flow, 0, len(e.flows))
	for _, f := range e.flows {
		out = append(out, f)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].GetCreateDate(), out[j].GetCreateDate()
		if ci.Equal(cj) {
			return out[i].GetId() < out[j].GetId()
		}
		return ci.Before(cj)
	})
	return out
}

// CreateAction builds an action bound to a registered method.
func (e *Engine) CreateAction(props action.Props, service string, method string) (*action.Action, error) {
	m, err := e.registry.FindMethod(service, method)
	if err != nil {
		return nil, err
	}
	a, err := action.New(props)
	if err != nil {
		return nil, err
	}
	if err := a.Bind(m); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Engine) Publish(event string, payload any) error {
	return e.dispatcher.Publish(event, payload)
}

// Trigger starts the flows with the given ids, unknown ids are skipped.
func (e *Engine) Trigger(ids []string, args any) error {
	return e.dispatcher.Publish(event.EventTrigger, event.TriggerRequest{Flows: ids, Args: args})
}

// RunFlow runs a single flow outside of any event. Without wait it returns once the run started.
func (e *Engine) RunFlow(id string, args any, wait bool) (any, error) {
	f, ok := e.GetFlowByID(id)
	if !ok {
		return nil, FlowNotFoundError{Id: id}
	}
	if wait {
		return f.Run(e.ctx, args)
	}
	return nil, f.Start(e.ctx, args)
}

// OnPropUpdated writes every change of an owned flow through to storage.
func (e *Engine) OnPropUpdated(f *flow.Flow, prop string, prev any, next any) {
	if _, ok := e.GetFlowByID(f.GetId()); !ok {
		return
	}
	recMap, err := util.ToMap(f.ToRecord())
	if err != nil {
		logger.Error("error encoding flow", zap.String("flow", f.GetId()), zap.Error(err))
		return
	}
	if _, err := e.storage.UpdateRecord(persistence.ById(f.GetId()), map[string]any{prop: recMap[prop]}); err != nil {
		logger.Error("error persisting flow property", zap.String("flow", f.GetId()), zap.String("property", prop), zap.Error(err))
		return
	}
	if prop != flow.PROP_LAST_MODIFIED_DATE && prop != flow.PROP_LAST_RUN_DATE {
		f.SetLastModifiedDate(time.Now())
	}
}
