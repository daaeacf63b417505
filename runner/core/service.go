package core

import (
	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/metadata"
)

func param(name string, typ string, required bool) map[string]any {
	return map[string]any{"name": name, "type": typ, "required": required}
}

func method(name string, summary string, params ...map[string]any) *metadata.Method {
	list := make([]any, 0, len(params))
	for _, p := range params {
		list = append(list, p)
	}
	return &metadata.Method{
		Name:       name,
		Summary:    summary,
		Definition: map[string]any{"parameters": list},
	}
}

// NewService describes the built in methods served by r.
func NewService(r *Runner) *metadata.Service {
	s := metadata.NewService(SERVICE_NAME, r)
	s.Description = "Built in functions"
	s.Category = "core"
	s.RegisterEvent(event.EventAutorun)
	s.RegisterEvent("Error")
	for _, m := range []*metadata.Method{
		method("log", "Write a message to the log", param("message", "string", true)),
		method("delay", "Wait for a number of milliseconds", param("ms", "number", true)),
		method("link", "Trigger another flow", param("flow", "string", true)),
		method("split", "Trigger several flows", param("subflows", "array", true)),
		method("switch", "Trigger the flow of the first matching case",
			param("target", "string", false),
			param("property", "string", true),
			param("cases", "array", true)),
		method("setVariable", "Store variables for later actions", param("variables", "object", true)),
		method("emit", "Publish an event", param("event", "string", true), param("payload", "object", false)),
	} {
		// names are unique, registration can not fail
		_ = s.RegisterMethod(m)
	}
	return s
}
