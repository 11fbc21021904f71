// Package compose holds the service-definition document types and the client
// for the container orchestrator that runs them.
package compose

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ServiceLlama is the fixed name of the inference service.
	ServiceLlama = "llama"
	// ServiceWebUI is the fixed name of the UI service.
	ServiceWebUI = "webui"

	// DefinitionFile is the rendered service-definition filename inside the
	// install root.
	DefinitionFile = "docker-compose.yml"
)

// Definition is the deployment document: the set of services the
// orchestrator runs.
type Definition struct {
	Services map[string]Service `yaml:"services"`
}

// Service is one deployable service descriptor.
type Service struct {
	Image       string   `yaml:"image"`
	Restart     string   `yaml:"restart,omitempty"`
	NetworkMode string   `yaml:"network_mode,omitempty"`
	Ports       []string `yaml:"ports,omitempty"`
	Volumes     []string `yaml:"volumes,omitempty"`
	Entrypoint  []string `yaml:"entrypoint,omitempty"`
	Command     string   `yaml:"command,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	Deploy      *Deploy  `yaml:"deploy,omitempty"`
}

// Deploy carries the resource reservations of a service. The inference
// service uses it to declare its GPU requirement.
type Deploy struct {
	Resources Resources `yaml:"resources"`
}

// Resources is the resource block of a deploy section.
type Resources struct {
	Reservations Reservations `yaml:"reservations"`
}

// Reservations lists reserved devices.
type Reservations struct {
	Devices []Device `yaml:"devices"`
}

// Device is one reserved device capability declaration.
type Device struct {
	Driver       string   `yaml:"driver,omitempty"`
	Count        string   `yaml:"count,omitempty"`
	Capabilities []string `yaml:"capabilities"`
}

// ParseDefinition decodes a service-definition document.
func ParseDefinition(b []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(b, &def); err != nil {
		return nil, fmt.Errorf("unmarshal service definition: %w", err)
	}
	return &def, nil
}

// Validate checks the structural invariants of a rendered definition: both
// fixed services must be present and every host path of a volume mount must
// be absolute.
func (d *Definition) Validate() error {
	for _, name := range []string{ServiceLlama, ServiceWebUI} {
		if _, ok := d.Services[name]; !ok {
			return fmt.Errorf("service %q missing from definition", name)
		}
	}
	for name, svc := range d.Services {
		for _, v := range svc.Volumes {
			host, _, ok := strings.Cut(v, ":")
			if !ok || !filepath.IsAbs(host) {
				return fmt.Errorf("service %q volume %q: host path must be absolute", name, v)
			}
		}
	}
	return nil
}
