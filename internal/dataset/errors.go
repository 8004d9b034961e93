package dataset

import "fmt"

// FormatError reports input that is missing, unreadable or does not carry the
// expected header columns.
type FormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("format error: %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
