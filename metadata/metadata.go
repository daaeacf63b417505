package metadata

import (
	"context"
	"fmt"
	"time"
)

// Runner executes the methods of the services it owns.
type Runner interface {
	Name() string
	Execute(ctx context.Context, call Call, args map[string]any) (any, error)
}

// Call describes the action invoking a method.
type Call struct {
	ActionId   string
	ActionName string
	Timeout    time.Duration
	Method     *Method
}

type Method struct {
	Name        string
	Summary     string
	Description string
	Service     *Service
	Runner      Runner
	Definition  map[string]any
}

func (m *Method) ServiceName() string {
	if m.Service == nil {
		return ""
	}
	return m.Service.Name
}

type MethodInfo struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Definition  map[string]any `json:"definition,omitempty"`
}

func (m *Method) Info() MethodInfo {
	return MethodInfo{
		Name:        m.Name,
		Summary:     m.Summary,
		Description: m.Description,
		Definition:  m.Definition,
	}
}

type Service struct {
	Name        string
	Description string
	ServerURL   string
	Category    string
	Runner      Runner
	Events      []string
	methods     map[string]*Method
	order       []string
}

func NewService(name string, runner Runner) *Service {
	return &Service{
		Name:    name,
		Runner:  runner,
		methods: make(map[string]*Method),
	}
}

func (s *Service) RegisterEvent(event string) {
	for _, e := range s.Events {
		if e == event {
			return
		}
	}
	s.Events = append(s.Events, event)
}

// RegisterMethod attaches m to the service, the method inherits the service runner.
func (s *Service) RegisterMethod(m *Method) error {
	if len(m.Name) == 0 {
		return fmt.Errorf("service %s: method name can not be empty", s.Name)
	}
	if _, ok := s.methods[m.Name]; ok {
		return fmt.Errorf("service %s: method %s already registered", s.Name, m.Name)
	}
	m.Service = s
	if m.Runner == nil {
		m.Runner = s.Runner
	}
	s.methods[m.Name] = m
	s.order = append(s.order, m.Name)
	return nil
}

func (s *Service) Method(name string) (*Method, bool) {
	m, ok := s.methods[name]
	return m, ok
}

func (s *Service) Methods() []*Method {
	out := make([]*Method, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.methods[name])
	}
	return out
}

type ServiceInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	ServerURL   string       `json:"serverURL,omitempty"`
	Category    string       `json:"category,omitempty"`
	Runner      string       `json:"runner"`
	Events      []string     `json:"events"`
	Methods     []MethodInfo `json:"methods"`
}

func (s *Service) Info() ServiceInfo {
	info := ServiceInfo{
		Name:        s.Name,
		Description: s.Description,
		ServerURL:   s.ServerURL,
		Category:    s.Category,
		Events:      append([]string{}, s.Events...),
	}
	if s.Runner != nil {
		info.Runner = s.Runner.Name()
	}
	for _, m := range s.Methods() {
		info.Methods = append(info.Methods, m.Info())
	}
	return info
}
