package validation

// Error carries a field violation map across service boundaries so callers
// can surface per-field messages.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	for field, message := range e.Fields {
		return field + ": " + message
	}
	return "validation failed"
}

// ErrorFromResult converts a failed Result into an error, or nil when the
// result is valid.
func ErrorFromResult(result Result) error {
	if result.IsValid {
		return nil
	}
	return &Error{Fields: result.Errors}
}
