package model

import "fmt"

// BuildError is an internal invariant violation or unsupported feature
// encountered while lowering a typechecked system to a physical
// schema. Unlike Diagnostics, a BuildError is fatal and aborts the
// build (spec §7).
type BuildError struct {
	Entity  string
	Field   string
	Message string
}

func (e *BuildError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("model: %s.%s: %s", e.Entity, e.Field, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("model: %s: %s", e.Entity, e.Message)
	}
	return "model: " + e.Message
}

func buildErr(entity, field, format string, args ...any) *BuildError {
	return &BuildError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}
