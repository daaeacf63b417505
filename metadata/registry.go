package metadata

import (
	"fmt"
	"sort"
	"sync"
)

type MethodNotFoundError struct {
	Service string
	Method  string
}

func (e MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %s of service %s not found", e.Method, e.Service)
}

// Registry resolves services and methods by name.
type Registry struct {
	mu       sync.RWMutex
	runners  map[string]Runner
	services map[string]*Service
}

func NewRegistry() *Registry {
	return &Registry{
		runners:  make(map[string]Runner),
		services: make(map[string]*Service),
	}
}

func (r *Registry) RegisterRunner(runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[runner.Name()] = runner
}

func (r *Registry) Runner(name string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[name]
	return runner, ok
}

func (r *Registry) RegisterService(s *Service) error {
	if len(s.Name) == 0 {
		return fmt.Errorf("service name can not be empty")
	}
	if s.Runner == nil {
		return fmt.Errorf("service %s has no runner", s.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[s.Name]; ok {
		return fmt.Errorf("service %s already registered", s.Name)
	}
	if _, ok := r.runners[s.Runner.Name()]; !ok {
		r.runners[s.Runner.Name()] = s.Runner
	}
	r.services[s.Name] = s
	return nil
}

func (r *Registry) Service(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[name]
	return s, ok
}

func (r *Registry) Services() []*Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) FindMethod(service string, method string) (*Method, error) {
	s, ok := r.Service(service)
	if !ok {
		return nil, MethodNotFoundError{Service: service, Method: method}
	}
	m, ok := s.Method(method)
	if !ok {
		return nil, MethodNotFoundError{Service: service, Method: method}
	}
	return m, nil
}
