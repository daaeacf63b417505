package script

import "github.com/mohitkumar/automate/metadata"

const SERVICE_NAME = "Script"

// NewService exposes a single method running the script passed in its args.
func NewService(r *Runner) *metadata.Service {
	s := metadata.NewService(SERVICE_NAME, r)
	s.Description = "Run JavaScript against the action arguments"
	s.Category = "core"
	_ = s.RegisterMethod(&metadata.Method{
		Name:    "run",
		Summary: "Evaluate a script, $ holds the arguments",
	})
	return s
}
