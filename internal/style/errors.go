package style

import "fmt"

// ErrUnknownValue indicates an enumerated field holds a value outside its domain.
type ErrUnknownValue struct {
	Field string
	Value string
}

func (e *ErrUnknownValue) Error() string {
	return fmt.Sprintf("unknown value %q for field %s", e.Value, e.Field)
}

// ErrFieldShape indicates a field has the wrong YAML shape or scalar type.
type ErrFieldShape struct {
	Field string
	Want  string
}

func (e *ErrFieldShape) Error() string {
	return fmt.Sprintf("field %s: expected %s", e.Field, e.Want)
}

// ErrInvalidColor indicates a color string could not be parsed.
type ErrInvalidColor struct {
	Value string
}

func (e *ErrInvalidColor) Error() string {
	return fmt.Sprintf("invalid color %q", e.Value)
}

// ErrInvalidPattern indicates a type pattern is not a valid regular expression.
type ErrInvalidPattern struct {
	Field   string
	Pattern string
	Err     error
}

func (e *ErrInvalidPattern) Error() string {
	return fmt.Sprintf("field %s: invalid pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *ErrInvalidPattern) Unwrap() error { return e.Err }

// Warning records a style problem that was skipped while loading.
// The affected field keeps its default and loading continues.
type Warning struct {
	Rule  string // rule id, e.g. "3/1"
	Field string
	Err   error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("rule %s: %v", w.Rule, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }
