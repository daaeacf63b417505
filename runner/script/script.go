package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"go.uber.org/zap"
)

const RUNNER_NAME = "ScriptRunner"

type TimeoutError struct {
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("script interrupted after %s", e.Timeout)
}

// Runner evaluates javascript with the action arguments bound to $.
// The script comes from the method definition, or from the args when the definition has none.
type Runner struct{}

var _ metadata.Runner = new(Runner)

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Name() string {
	return RUNNER_NAME
}

func (r *Runner) Execute(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	source := ""
	if call.Method != nil {
		source, _ = call.Method.Definition["script"].(string)
	}
	if len(source) == 0 {
		source, _ = args["script"].(string)
	}
	if len(source) == 0 {
		return nil, fmt.Errorf("action %s: script can not be empty", call.ActionId)
	}
	logger.Debug("running script", zap.String("action", call.ActionName))

	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	vm := goja.New()

	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunString(fmt.Sprintf("var $ = %s;\n", data) + source); err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, TimeoutError{Timeout: call.Timeout}
		}
		return nil, fmt.Errorf("error executing javascript %w", err)
	}
	val := vm.Get("$")
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	// round trip through json so results hold plain maps and float64 like any other input
	res, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var output any
	if err := json.Unmarshal(res, &output); err != nil {
		return nil, err
	}
	return output, nil
}
