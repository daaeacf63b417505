package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/flow"
	"github.com/mohitkumar/automate/util"
)

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
	QueueSize     int
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const PROMETHEUS_DATA_COLLECTOR DataCollectorType = "PROMETHEUS_DATA_COLLECTOR"

type RecordKind string

const RECORD_FLOW_STARTED RecordKind = "flowStarted"
const RECORD_FLOW_FINISHED RecordKind = "flowFinished"
const RECORD_ACTION_SUCCESS RecordKind = "actionSuccess"
const RECORD_ACTION_FAILURE RecordKind = "actionFailure"
const RECORD_POLICY RecordKind = "policy"

// Record is one analytics event, captured synchronously and delivered on the worker.
type Record struct {
	Kind       RecordKind
	FlowId     string
	FlowName   string
	ActionId   string
	ActionName string
	Policy     action.OnErrorAction
	Data       any
	Reason     string
	Duration   time.Duration
	At         time.Time
}

type WorkflowDataCollector interface {
	Collect(rec Record) error
	Close() error
}

func NewDataCollector(config DataCollectorConfig) (WorkflowDataCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		return NewLogFileDataCollector(config.FileName)
	case PROMETHEUS_DATA_COLLECTOR:
		return NewPrometheusDataCollector(nil), nil
	}
	return nil, fmt.Errorf("unknown data collector type %q", config.CollectorType)
}

// Recorder turns flow notifications into records and hands them to the collectors off the run goroutine.
type Recorder struct {
	collectors []WorkflowDataCollector
	worker     *util.Worker
	wg         sync.WaitGroup

	mu      sync.Mutex
	started map[string]time.Time
}

var _ flow.Observer = new(Recorder)

func NewRecorder(queueSize int, collectors ...WorkflowDataCollector) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{
		collectors: collectors,
		started:    make(map[string]time.Time),
	}
	r.worker = util.NewWorker("analytics", &r.wg, r.deliver, queueSize)
	return r
}

func (r *Recorder) Start() {
	r.worker.Start()
}

// Stop flushes the queued records and closes the collectors.
func (r *Recorder) Stop() error {
	r.worker.Stop()
	r.wg.Wait()
	var firstErr error
	for _, c := range r.collectors {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recorder) deliver(job util.Job) error {
	rec := job.(Record)
	var firstErr error
	for _, c := range r.collectors {
		if err := c.Collect(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recorder) newRecord(f *flow.Flow, a *action.Action, kind RecordKind) Record {
	rec := Record{
		Kind:     kind,
		FlowId:   f.GetId(),
		FlowName: f.GetName(),
		At:       time.Now(),
	}
	if a != nil {
		rec.ActionId = a.GetId()
		rec.ActionName = a.GetName()
	}
	return rec
}

func (r *Recorder) OnBeforeRunning(f *flow.Flow, args any) {
	r.mu.Lock()
	if _, ok := r.started[f.GetId()]; !ok {
		r.started[f.GetId()] = time.Now()
	}
	r.mu.Unlock()
	r.worker.Submit(r.newRecord(f, nil, RECORD_FLOW_STARTED))
}

func (r *Recorder) OnAfterRunning(f *flow.Flow, result any, err error) {
	rec := r.newRecord(f, nil, RECORD_FLOW_FINISHED)
	r.mu.Lock()
	if start, ok := r.started[f.GetId()]; ok {
		rec.Duration = rec.At.Sub(start)
		delete(r.started, f.GetId())
	}
	r.mu.Unlock()
	if err != nil {
		rec.Reason = err.Error()
	} else {
		rec.Data = result
	}
	r.worker.Submit(rec)
}

func (r *Recorder) OnActionRunning(f *flow.Flow, a *action.Action, args any) {}

func (r *Recorder) OnActionSucceeded(f *flow.Flow, a *action.Action, result any) {
	rec := r.newRecord(f, a, RECORD_ACTION_SUCCESS)
	rec.Data = result
	r.worker.Submit(rec)
}

func (r *Recorder) OnActionFailed(f *flow.Flow, a *action.Action, err error) {
	rec := r.newRecord(f, a, RECORD_ACTION_FAILURE)
	rec.Reason = err.Error()
	r.worker.Submit(rec)
}

func (r *Recorder) policy(f *flow.Flow, a *action.Action, policy action.OnErrorAction, err error) {
	rec := r.newRecord(f, a, RECORD_POLICY)
	rec.Policy = policy
	rec.Reason = err.Error()
	r.worker.Submit(rec)
}

func (r *Recorder) OnIgnoreError(f *flow.Flow, a *action.Action, err error) {
	r.policy(f, a, action.ON_ERROR_IGNORE, err)
}

func (r *Recorder) OnRetry(f *flow.Flow, a *action.Action, err error) {
	r.policy(f, a, action.ON_ERROR_RETRY, err)
}

func (r *Recorder) OnRestartFlow(f *flow.Flow, a *action.Action, err error) {
	r.policy(f, a, action.ON_ERROR_RESTART, err)
}

func (r *Recorder) OnStopFlow(f *flow.Flow, a *action.Action, err error) {
	r.policy(f, a, action.ON_ERROR_STOP, err)
}
