package filter

import "fmt"

// ConfigurationError reports a model whose declared capabilities cannot be
// backed by its schema. It is raised at registration and is fatal at boot.
type ConfigurationError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter: model %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("filter: model %s: %s", e.Model, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
