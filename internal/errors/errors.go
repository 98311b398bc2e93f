package errors

import "fmt"

// GrantError carries the classification the retrieval pipeline needs to
// decide between failing a request and degrading it. Category, severity,
// and the retryable flag all derive from the code, so call sites only
// ever pick a code and a message.
type GrantError struct {
	Code      string
	Message   string
	Category  Category
	Severity  Severity
	Retryable bool

	// Details holds extra context attached via WithDetail.
	Details map[string]string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New builds a GrantError for the given code. The cause may be nil.
func New(code, message string, cause error) *GrantError {
	return &GrantError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
		Cause:     cause,
	}
}

// Wrap classifies an existing error under the given code, reusing its
// message. Returns nil for a nil error.
func Wrap(code string, err error) *GrantError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *GrantError) Unwrap() error { return e.Cause }

// Is treats two GrantErrors with the same code as equal, so call sites
// can use errors.Is against sentinel-style constructed errors.
func (e *GrantError) Is(target error) bool {
	t, ok := target.(*GrantError)
	return ok && e.Code == t.Code
}

// WithDetail attaches a key-value pair and returns the error, so details
// can be chained onto a fresh error in one expression.
func (e *GrantError) WithDetail(key, value string) *GrantError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// IsRetryable reports whether err is a GrantError marked retryable.
func IsRetryable(err error) bool {
	ge, ok := err.(*GrantError)
	return ok && ge.Retryable
}

// IsFatal reports whether err is a GrantError of fatal severity. Fatal
// errors abort the current operation instead of degrading it.
func IsFatal(err error) bool {
	ge, ok := err.(*GrantError)
	return ok && ge.Severity == SeverityFatal
}

// GetCode returns the error code, or "" when err is not a GrantError.
func GetCode(err error) string {
	if ge, ok := err.(*GrantError); ok {
		return ge.Code
	}
	return ""
}

// GetCategory returns the category, or "" when err is not a GrantError.
func GetCategory(err error) Category {
	if ge, ok := err.(*GrantError); ok {
		return ge.Category
	}
	return ""
}
