package recipe

import "fmt"

// FormatError reports a malformed recipe document or an unresolvable
// item/ingredient reference. Field names the offending field or key.
type FormatError struct {
	Field string
	Msg   string
}

func (e *FormatError) Error() string { return e.Msg }

func formatErr(field, format string, args ...any) *FormatError {
	return &FormatError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Errorf builds a FormatError for field. Codecs use it so every parse
// failure carries the same type.
func Errorf(field, format string, args ...any) error {
	return formatErr(field, format, args...)
}
