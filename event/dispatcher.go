package event

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/logger"
	"go.uber.org/zap"
)

// EventAutorun is published once when the engine starts.
const EventAutorun = "Autorun"

// EventTrigger starts the flows listed in a TriggerRequest.
const EventTrigger = "__trigger"

// Runnable is anything a published event can start, in practice a flow.
type Runnable interface {
	GetId() string
	Start(ctx context.Context, args any) error
}

type TriggerRequest struct {
	Flows []string `mapstructure:"flows" json:"flows"`
	Args  any      `mapstructure:"args" json:"args"`
}

// Resolver finds a runnable by id for EventTrigger.
type Resolver func(id string) (Runnable, bool)

type Dispatcher struct {
	mu       sync.RWMutex
	subs     map[string]map[string]Runnable
	resolver Resolver
	ctx      context.Context
}

func NewDispatcher(ctx context.Context) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]map[string]Runnable),
		ctx:  ctx,
	}
}

func (d *Dispatcher) SetResolver(r Resolver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolver = r
}

func (d *Dispatcher) Subscribe(event string, r Runnable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	flows, ok := d.subs[event]
	if !ok {
		flows = make(map[string]Runnable)
		d.subs[event] = flows
	}
	flows[r.GetId()] = r
}

func (d *Dispatcher) Unsubscribe(event string, r Runnable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	flows, ok := d.subs[event]
	if !ok {
		return
	}
	delete(flows, r.GetId())
	if len(flows) == 0 {
		delete(d.subs, event)
	}
}

func (d *Dispatcher) UnsubscribeAll(r Runnable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for event, flows := range d.subs {
		delete(flows, r.GetId())
		if len(flows) == 0 {
			delete(d.subs, event)
		}
	}
}

// Subscribers returns the ids subscribed to event, sorted.
func (d *Dispatcher) Subscribers(event string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.subs[event]))
	for id := range d.subs[event] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dispatcher) Events() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	events := make([]string, 0, len(d.subs))
	for e := range d.subs {
		events = append(events, e)
	}
	sort.Strings(events)
	return events
}

// Publish starts every flow subscribed to event with payload. It does not wait for the runs.
func (d *Dispatcher) Publish(event string, payload any) error {
	if event == EventTrigger {
		return d.trigger(payload)
	}
	d.mu.RLock()
	targets := make([]Runnable, 0, len(d.subs[event]))
	for _, r := range d.subs[event] {
		targets = append(targets, r)
	}
	d.mu.RUnlock()

	logger.Debug("publishing event", zap.String("event", event), zap.Int("subscribers", len(targets)))
	d.start(event, targets, payload)
	return nil
}

func (d *Dispatcher) trigger(payload any) error {
	var req TriggerRequest
	switch p := payload.(type) {
	case TriggerRequest:
		req = p
	case *TriggerRequest:
		req = *p
	default:
		if err := mapstructure.Decode(payload, &req); err != nil {
			return fmt.Errorf("invalid trigger payload: %w", err)
		}
	}
	d.mu.RLock()
	resolver := d.resolver
	d.mu.RUnlock()
	if resolver == nil {
		return fmt.Errorf("no resolver set for trigger event")
	}
	targets := make([]Runnable, 0, len(req.Flows))
	for _, id := range req.Flows {
		r, ok := resolver(id)
		if !ok {
			logger.Warn("trigger target not found", zap.String("flow", id))
			continue
		}
		targets = append(targets, r)
	}
	d.start(EventTrigger, targets, req.Args)
	return nil
}

func (d *Dispatcher) start(event string, targets []Runnable, payload any) {
	for _, r := range targets {
		if err := r.Start(d.ctx, payload); err != nil {
			logger.Info("flow not started", zap.String("event", event), zap.String("flow", r.GetId()), zap.Error(err))
		}
	}
}
