package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, as reported in logs and pass results.
const (
	KindRegistryUnavailable  = "RegistryUnavailable"
	KindDataIntegrity        = "DataIntegrityError"
	KindTemplateRender       = "TemplateRenderError"
	KindInvalidConfiguration = "InvalidConfiguration"
	KindUnknown              = "Unknown"
)

// RegistryUnavailableError is returned when any registry call fails.
// Op names the call ("catalog", "agent", "health"); Service is set for
// health queries.
type RegistryUnavailableError struct {
	Op      string
	Service string
	Err     error
}

func (e *RegistryUnavailableError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("registry unavailable (%s %s): %v", e.Op, e.Service, e.Err)
	}
	return fmt.Sprintf("registry unavailable (%s): %v", e.Op, e.Err)
}

func (e *RegistryUnavailableError) Unwrap() error { return e.Err }

// DataIntegrityError is returned when instances of one service disagree on port.
type DataIntegrityError struct {
	Service string
	Ports   []int
}

func (e *DataIntegrityError) Error() string {
	ports := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		ports = append(ports, fmt.Sprint(p))
	}
	return fmt.Sprintf("service %s: instances disagree on port [%s]", e.Service, strings.Join(ports, " "))
}

// TemplateRenderError is returned when the template is missing, malformed
// or fails to render.
type TemplateRenderError struct {
	Path string
	Err  error
}

func (e *TemplateRenderError) Error() string {
	return fmt.Sprintf("render template %s: %v", e.Path, e.Err)
}

func (e *TemplateRenderError) Unwrap() error { return e.Err }

// InvalidConfigurationError is returned at startup for unusable settings.
type InvalidConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidConfigurationError) Unwrap() error { return e.Err }

// Kind returns the error kind name of err, looking through wrapping.
func Kind(err error) string {
	var (
		registryErr *RegistryUnavailableError
		integrity   *DataIntegrityError
		renderErr   *TemplateRenderError
		configErr   *InvalidConfigurationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &registryErr):
		return KindRegistryUnavailable
	case errors.As(err, &integrity):
		return KindDataIntegrity
	case errors.As(err, &renderErr):
		return KindTemplateRender
	case errors.As(err, &configErr):
		return KindInvalidConfiguration
	default:
		return KindUnknown
	}
}
