package core

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/branch"
	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/util"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const RUNNER_NAME = "CoreRunner"
const SERVICE_NAME = "CoreFunction"

// Publisher is the part of the dispatcher the core methods need.
type Publisher interface {
	Publish(event string, payload any) error
}

type Parameter struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Required bool   `mapstructure:"required"`
}

type handler func(ctx context.Context, call metadata.Call, args map[string]any) (any, error)

type Runner struct {
	publisher Publisher
	handlers  map[string]handler
}

var _ metadata.Runner = new(Runner)

func NewRunner(publisher Publisher) *Runner {
	r := &Runner{publisher: publisher}
	r.handlers = map[string]handler{
		"log":         r.log,
		"delay":       r.delay,
		"link":        r.link,
		"split":       r.split,
		"switch":      r.evaluateSwitch,
		"setVariable": r.setVariable,
		"emit":        r.emit,
	}
	return r
}

func (r *Runner) Name() string {
	return RUNNER_NAME
}

func (r *Runner) Execute(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	if call.Method == nil {
		return nil, fmt.Errorf("action %s has no method", call.ActionId)
	}
	if call.Method.Runner == nil || call.Method.Runner.Name() != RUNNER_NAME {
		return nil, fmt.Errorf("method %s is not a core method", call.Method.Name)
	}
	h, ok := r.handlers[call.Method.Name]
	if !ok {
		return nil, fmt.Errorf("method %s is not supported", call.Method.Name)
	}
	if err := validateArguments(call.Method.Definition, args); err != nil {
		return nil, err
	}
	return h(ctx, call, args)
}

func validateArguments(definition map[string]any, args map[string]any) error {
	var params []Parameter
	if err := mapstructure.Decode(definition["parameters"], &params); err != nil {
		return fmt.Errorf("invalid parameter definition: %w", err)
	}
	for _, p := range params {
		if !p.Required {
			continue
		}
		arg, ok := args[p.Name]
		if !ok || arg == nil {
			return fmt.Errorf("required argument '%s' was not set", p.Name)
		}
		if err := checkType(p, arg); err != nil {
			return err
		}
	}
	return nil
}

func checkType(p Parameter, arg any) error {
	kind := reflect.TypeOf(arg).Kind()
	switch p.Type {
	case "string":
		if kind != reflect.String {
			return fmt.Errorf("expect argument '%s' to be a string, but got %T", p.Name, arg)
		}
	case "number", "integer":
		if _, err := cast.ToFloat64E(arg); err != nil || kind == reflect.String || kind == reflect.Bool {
			return fmt.Errorf("expect argument '%s' to be a number, but got %T", p.Name, arg)
		}
	case "array":
		if kind != reflect.Slice && kind != reflect.Array {
			return fmt.Errorf("expect argument '%s' to be an array, but got %T", p.Name, arg)
		}
	case "object", "":
		if kind != reflect.Map && kind != reflect.Struct && kind != reflect.Slice {
			return fmt.Errorf("expect argument '%s' to be an object, but got %T", p.Name, arg)
		}
	}
	return nil
}

func (r *Runner) log(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	message := util.ResolveTemplate(args, cast.ToString(args["message"]))
	logger.Info("[Logger] "+message, zap.String("action", call.ActionName))
	return args, nil
}

func (r *Runner) delay(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	ms, err := cast.ToInt64E(args["ms"])
	if err != nil {
		return nil, fmt.Errorf("invalid delay: %w", err)
	}
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return args, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("delay of %dms interrupted: %w", ms, ctx.Err())
	}
}

func (r *Runner) trigger(flows []string, args map[string]any) error {
	return r.publisher.Publish(event.EventTrigger, event.TriggerRequest{Flows: flows, Args: args})
}

func (r *Runner) link(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	flow, err := cast.ToStringE(args["flow"])
	if err != nil || len(flow) == 0 {
		return nil, fmt.Errorf("argument 'flow' must be a flow id")
	}
	if err := r.trigger([]string{flow}, args); err != nil {
		return nil, err
	}
	return args, nil
}

func (r *Runner) split(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	flows, err := cast.ToStringSliceE(args["subflows"])
	if err != nil {
		return nil, fmt.Errorf("argument 'subflows' must be a list of flow ids: %w", err)
	}
	if err := r.trigger(flows, args); err != nil {
		return nil, err
	}
	return args, nil
}

func (r *Runner) evaluateSwitch(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	sw, err := branch.Decode(args)
	if err != nil {
		return nil, err
	}
	flow, matched, err := branch.Evaluate(sw, args)
	if err != nil {
		return nil, err
	}
	if matched && len(flow) != 0 {
		logger.Debug("switch matched", zap.String("action", call.ActionName), zap.String("flow", flow))
		if err := r.trigger([]string{flow}, args); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (r *Runner) setVariable(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	out := util.CopyMap(args)
	out[branch.VARIABLES_KEY] = args["variables"]
	delete(out, "variables")
	return out, nil
}

func (r *Runner) emit(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	name, err := cast.ToStringE(args["event"])
	if err != nil || len(name) == 0 {
		return nil, fmt.Errorf("argument 'event' must be an event name")
	}
	if err := r.publisher.Publish(name, args["payload"]); err != nil {
		return nil, err
	}
	return args, nil
}
