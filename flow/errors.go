package flow

import "fmt"

type PreconditionError struct {
	FlowId string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("flow %s can not run: %s", e.FlowId, e.Reason)
}
