// Package stack holds the static declaration of the managed stack: one
// descriptor per service, its dependency edges, and its readiness check.
// Loading is purely static — no network access — and fails with a
// *ConfigError before any service is touched.
package stack

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Readiness check kinds.
const (
	CheckHTTP = "http"
	CheckTCP  = "tcp"
	CheckGRPC = "grpc"
	CheckNone = "none"
)

// ConfigError reports an invalid stack definition: unparseable file,
// unresolvable dependency name, duplicate service, or dependency cycle.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "stack config: " + e.Msg
}

// Configf builds a *ConfigError from a format string.
func Configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Check declares how a service's readiness is observed from outside.
// A service with no check is considered ready as soon as its start call
// returns without a launch error.
type Check struct {
	// Kind selects the probe strategy: "http" (GET expecting 2xx),
	// "tcp" (connect-and-close), "grpc" (standard health protocol),
	// or "none".
	Kind string `yaml:"kind" validate:"required,oneof=http tcp grpc none"`

	// Address is the host:port the probe targets.
	Address string `yaml:"address,omitempty" validate:"required_unless=Kind none,omitempty,hostname_port"`

	// Path is the request path for http checks. Default "/".
	Path string `yaml:"path,omitempty"`

	// Timeout is the overall startup budget for this service.
	// Zero means the prober default.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Interval is the poll interval between attempts.
	// Zero means the prober default.
	Interval Duration `yaml:"interval,omitempty"`
}

// Service describes one managed member of the stack. Descriptors are
// immutable once loaded; declaration order is significant and breaks
// ties between services with no dependency relation.
type Service struct {
	Name      string   `yaml:"name" validate:"required"`
	Image     string   `yaml:"image" validate:"required"`
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Cmd overrides the container's default command.
	Cmd []string `yaml:"cmd,omitempty"`

	// Env sets environment variables on the container. Values may
	// reference settings keys as ${MODEL}, ${MONITOR_URL}, etc.
	Env map[string]string `yaml:"env,omitempty"`

	// Ports are docker-style port specs ("host:container").
	Ports []string `yaml:"ports,omitempty"`

	// Binds are docker-style bind/volume specs ("name-or-path:/target").
	Binds []string `yaml:"binds,omitempty"`

	Check *Check `yaml:"check,omitempty"`

	// Settle is an extra wait after the service is Ready, before
	// dependents may start. Absorbs early-connection flakiness.
	Settle Duration `yaml:"settle,omitempty"`

	// Grace is the graceful-stop wait before shutdown gives up on this
	// service. Zero means the controller default.
	Grace Duration `yaml:"grace,omitempty"`
}

// Checked reports whether the service declares a readiness check.
func (s *Service) Checked() bool {
	return s.Check != nil && s.Check.Kind != "" && s.Check.Kind != CheckNone
}

// Stack is the full declared topology plus its load-time settings.
type Stack struct {
	Name     string    `yaml:"name" validate:"required"`
	Network  string    `yaml:"network,omitempty"`
	Settings Settings  `yaml:"settings,omitempty"`
	Services []Service `yaml:"services" validate:"required,min=1,dive"`

	index map[string]int
}

// Lookup returns the descriptor with the given name, or nil.
func (st *Stack) Lookup(name string) *Service {
	i, ok := st.index[name]
	if !ok {
		return nil
	}
	return &st.Services[i]
}

// Index returns the declaration position of the named service, or -1.
func (st *Stack) Index(name string) int {
	i, ok := st.index[name]
	if !ok {
		return -1
	}
	return i
}

// Load reads and validates a stack file. Settings declared in the file
// are overridden by STACKCTL_* environment variables, and ${KEY}
// references in service env values are expanded against them.
func Load(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Configf("read %s: %v", path, err)
	}

	st, err := Parse(data)
	if err != nil {
		return nil, err
	}

	settings, err := loadSettings(path)
	if err != nil {
		return nil, err
	}
	st.Settings = settings
	st.expandEnv()

	return st, nil
}

// Parse decodes and validates a stack definition without touching
// settings overrides. Split from Load so tests can feed literals.
func Parse(data []byte) (*Stack, error) {
	var st Stack
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&st); err != nil {
		return nil, Configf("parse: %v", err)
	}

	if err := validator.New().Struct(&st); err != nil {
		return nil, Configf("validate: %v", err)
	}

	if err := st.buildIndex(); err != nil {
		return nil, err
	}
	if err := st.checkEdges(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (st *Stack) buildIndex() error {
	st.index = make(map[string]int, len(st.Services))
	for i, svc := range st.Services {
		if _, dup := st.index[svc.Name]; dup {
			return Configf("duplicate service name %q", svc.Name)
		}
		st.index[svc.Name] = i
	}
	return nil
}

// checkEdges verifies every dependency names another declared service.
func (st *Stack) checkEdges() error {
	for _, svc := range st.Services {
		for _, dep := range svc.DependsOn {
			if dep == svc.Name {
				return Configf("service %q depends on itself", svc.Name)
			}
			if _, ok := st.index[dep]; !ok {
				return Configf("service %q depends on unknown service %q", svc.Name, dep)
			}
		}
	}
	return nil
}

// expandEnv expands ${KEY} references in service env values against the
// stack settings. Unknown keys expand to the empty string.
func (st *Stack) expandEnv() {
	vars := st.Settings.Vars()
	for i := range st.Services {
		for k, v := range st.Services[i].Env {
			st.Services[i].Env[k] = os.Expand(v, func(key string) string {
				return vars[key]
			})
		}
	}
}
