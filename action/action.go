package action

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/util"
)

type OnErrorAction string

const ON_ERROR_IGNORE OnErrorAction = "ignore"
const ON_ERROR_RETRY OnErrorAction = "retry"
const ON_ERROR_RESTART OnErrorAction = "restart"
const ON_ERROR_STOP OnErrorAction = "stop"

const DEFAULT_TIMEOUT = 15000
const DEFAULT_RETRY_COUNT = 3

func ParseOnErrorAction(s string) (OnErrorAction, error) {
	switch strings.ToLower(s) {
	case "":
		return ON_ERROR_STOP, nil
	case "ignore":
		return ON_ERROR_IGNORE, nil
	case "retry":
		return ON_ERROR_RETRY, nil
	case "restart", "restart-flow":
		return ON_ERROR_RESTART, nil
	case "stop", "stop-flow":
		return ON_ERROR_STOP, nil
	}
	return "", model.ValidationError{Field: "onErrorAction", Message: "must be one of ignore, retry, restart, stop, got " + s}
}

type Action struct {
	id          string
	name        string
	description string
	args        map[string]any
	wait        bool
	timeout     time.Duration
	retryCount  int
	onError     OnErrorAction
	transform   map[string]any

	mu        sync.Mutex
	method    *metadata.Method
	remaining int

	runMu sync.Mutex
}

func New(props Props) (*Action, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	onError, err := ParseOnErrorAction(props.OnErrorAction)
	if err != nil {
		return nil, err
	}
	a := &Action{
		id:          props.Id,
		name:        props.Name,
		description: props.Description,
		args:        util.CopyMap(props.Args),
		wait:        true,
		timeout:     DEFAULT_TIMEOUT * time.Millisecond,
		retryCount:  DEFAULT_RETRY_COUNT,
		onError:     onError,
		transform:   util.CopyMap(props.Transform),
	}
	if len(a.id) == 0 {
		a.id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if a.args == nil {
		a.args = make(map[string]any)
	}
	if props.Wait != nil {
		a.wait = *props.Wait
	}
	if props.Timeout != nil {
		a.timeout = time.Duration(*props.Timeout) * time.Millisecond
	}
	if props.RetryCount != nil {
		a.retryCount = *props.RetryCount
	}
	a.remaining = a.retryCount + 1
	return a, nil
}

// FromRecord rebuilds an action and binds it to method.
func FromRecord(rec model.ActionRecord, method *metadata.Method) (*Action, error) {
	a, err := New(PropsFromRecord(rec))
	if err != nil {
		return nil, err
	}
	if err := a.Bind(method); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Action) Bind(method *metadata.Method) error {
	if method == nil {
		return InvalidCapabilityError{Reason: "method is nil"}
	}
	if method.Runner == nil {
		return InvalidCapabilityError{Method: method.Name, Reason: "method has no runner"}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.method = method
	return nil
}

func (a *Action) GetId() string {
	return a.id
}

func (a *Action) GetName() string {
	if len(a.name) != 0 {
		return a.name
	}
	if m := a.GetMethod(); m != nil {
		return m.Name
	}
	return ""
}

func (a *Action) GetDescription() string {
	return a.description
}

func (a *Action) GetMethod() *metadata.Method {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.method
}

func (a *Action) GetArgs() map[string]any {
	return util.CopyMap(a.args)
}

func (a *Action) IsWait() bool {
	return a.wait
}

func (a *Action) GetTimeout() time.Duration {
	return a.timeout
}

func (a *Action) GetRetryCount() int {
	return a.retryCount
}

func (a *Action) GetOnErrorAction() OnErrorAction {
	return a.onError
}

func (a *Action) GetTransform() map[string]any {
	return util.CopyMap(a.transform)
}

func (a *Action) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

func (a *Action) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remaining = a.retryCount + 1
}

func (a *Action) CanRetry() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining > 0
}

// Run invokes the bound method with prev merged under the static args.
// Only one Run of an action is in flight at a time, concurrent callers wait their turn.
func (a *Action) Run(ctx context.Context, prev any) (any, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	method := a.GetMethod()
	if method == nil {
		return nil, UnboundCapabilityError{ActionId: a.id}
	}
	args := util.MergeArguments(prev, util.CopyMap(a.args))

	a.mu.Lock()
	a.remaining--
	a.mu.Unlock()

	call := metadata.Call{
		ActionId:   a.id,
		ActionName: a.GetName(),
		Timeout:    a.timeout,
		Method:     method,
	}
	res, err := method.Runner.Execute(ctx, call, args)
	if err == nil {
		return util.TransformResult(res, a.transform), nil
	}

	execErr := &ExecutorError{ActionId: a.id, Method: method.Name, Err: err}
	if a.onError == ON_ERROR_RETRY && !a.CanRetry() {
		return nil, &RetryBudgetExceededError{ActionId: a.id, Attempts: a.retryCount + 1, Err: execErr}
	}
	return nil, &PolicyError{Policy: a.onError, Err: execErr}
}

func (a *Action) ToRecord() model.ActionRecord {
	rec := model.ActionRecord{
		Id:            a.id,
		Name:          a.name,
		Description:   a.description,
		Args:          util.CopyMap(a.args),
		Wait:          a.wait,
		Timeout:       int(a.timeout / time.Millisecond),
		RetryCount:    a.retryCount,
		OnErrorAction: string(a.onError),
		Transform:     util.CopyMap(a.transform),
	}
	if m := a.GetMethod(); m != nil {
		rec.Method = model.MethodRef{Service: m.ServiceName(), Name: m.Name}
	}
	return rec
}
