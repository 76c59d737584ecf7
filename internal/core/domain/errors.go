package domain

import "fmt"

// ValidationError marks malformed input. Nothing is mutated before it is
// returned.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a reference to an entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StateError marks an operation attempted against an entity in the wrong
// lifecycle state, such as editing a completed prep sheet.
type StateError struct {
	Msg string
}

func (e StateError) Error() string { return e.Msg }

// Statef builds a StateError with a formatted message.
func Statef(format string, args ...any) error {
	return StateError{Msg: fmt.Sprintf(format, args...)}
}
