package line

import (
	"errors"
	"fmt"
)

// ProtocolError reports a request line that does not follow the grammar.
// The connection that sent it is closed; other connections are unaffected.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return "malformed request: " + e.Reason
}

func newProtocolError(text, format string, args ...any) *ProtocolError {
	return &ProtocolError{Line: text, Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
