package types

import "fmt"

// ConfigurationError marks a malformed catalog or alert rule. It is fatal at
// construction: the engine must not start with a partial catalog.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ClassificationError marks undecodable or malformed text. Callers recover by
// treating the input as maximally ambiguous (fail-closed), never by allowing.
type ClassificationError struct {
	Stage string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification error at %s: %v", e.Stage, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
