package compose

import (
	"fmt"
	"sort"
)

// NetworkName is the docker network every composed service joins.
const NetworkName = "apm-integration-testing"

// Document is the aggregate docker-compose configuration assembled from
// the rendered service fragments.
type Document struct {
	Version  string                    `yaml:"version"`
	Services map[string]map[string]any `yaml:"services"`
	Networks map[string]any            `yaml:"networks"`
	Volumes  map[string]any            `yaml:"volumes"`
}

func NewDocument() *Document {
	return &Document{
		Version:  "2.1",
		Services: map[string]map[string]any{},
		Networks: map[string]any{
			"default": map[string]any{"name": NetworkName},
		},
		Volumes: map[string]any{
			"esdata": map[string]any{"driver": "local"},
			"pgdata": map[string]any{"driver": "local"},
		},
	}
}

// Add merges one rendered fragment into the document. Every fragment must
// land under its own key; a collision means two services tried to render
// the same name and the composition is invalid.
func (d *Document) Add(name string, content map[string]any) error {
	if _, exists := d.Services[name]; exists {
		return fmt.Errorf("duplicate service %q in composed document", name)
	}
	d.Services[name] = content
	return nil
}

// BuildServices lists the services that declare a build step, sorted.
func (d *Document) BuildServices() []string {
	return d.servicesWith("build")
}

// ImageServices lists the services that run a plain image, sorted.
func (d *Document) ImageServices() []string {
	return d.servicesWith("image")
}

func (d *Document) servicesWith(key string) []string {
	var names []string
	for name, content := range d.Services {
		if _, ok := content[key]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
