package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogMethod struct {
	Name        string         `yaml:"name"`
	Summary     string         `yaml:"summary"`
	Description string         `yaml:"description"`
	Definition  map[string]any `yaml:"definition"`
}

type catalogService struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	ServerURL   string          `yaml:"serverURL"`
	Category    string          `yaml:"category"`
	Runner      string          `yaml:"runner"`
	Events      []string        `yaml:"events"`
	Methods     []catalogMethod `yaml:"methods"`
}

type catalog struct {
	Services []catalogService `yaml:"services"`
}

// LoadCatalog registers the services described in a yaml file.
func LoadCatalog(path string, registry *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ParseCatalog(data, registry)
}

// ParseCatalog registers the services described by data. Every runner must already be registered.
func ParseCatalog(data []byte, registry *Registry) error {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("invalid service catalog: %w", err)
	}
	for _, cs := range c.Services {
		runner, ok := registry.Runner(cs.Runner)
		if !ok {
			return fmt.Errorf("service %s: runner %s not registered", cs.Name, cs.Runner)
		}
		s := NewService(cs.Name, runner)
		s.Description = cs.Description
		s.ServerURL = cs.ServerURL
		s.Category = cs.Category
		for _, e := range cs.Events {
			s.RegisterEvent(e)
		}
		for _, cm := range cs.Methods {
			m := &Method{
				Name:        cm.Name,
				Summary:     cm.Summary,
				Description: cm.Description,
				Definition:  cm.Definition,
			}
			if err := s.RegisterMethod(m); err != nil {
				return err
			}
		}
		if err := registry.RegisterService(s); err != nil {
			return err
		}
	}
	return nil
}
