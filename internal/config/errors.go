package config

import "fmt"

// ValidationError reports one invalid config field. Validate joins
// several of these; callers can unwrap with errors.As to get the field
// path.
type ValidationError struct {
	// Field is the dotted path of the offending field, e.g.
	// "lsp.servers.go.queue_depth".
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}
