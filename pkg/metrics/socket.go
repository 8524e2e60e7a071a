package metrics

import "time"

// SocketMetrics observes the socket adapter: connection lifecycle and
// per-operation request outcomes.
//
// Implementations must be safe for concurrent use. If none is supplied the
// adapter uses NewNoopSocketMetrics.
type SocketMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - op: operation name ("open", "read", "login", ...)
	//   - duration: time spent handling the request
	//   - status: name of the status code returned to the client
	RecordRequest(op string, duration time.Duration, status string)

	// RecordRequestStart increments the in-flight gauge for op.
	RecordRequestStart(op string)

	// RecordRequestEnd decrements the in-flight gauge for op.
	RecordRequestEnd(op string)

	// RecordProtocolError counts a malformed request line.
	RecordProtocolError()

	// RecordRateLimited counts a request delayed by the rate limiter.
	RecordRateLimited()

	SetActiveConnections(count int32)
	RecordConnectionAccepted()
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed when the
	// shutdown timeout expired.
	RecordConnectionForceClosed()
}

type noopSocketMetrics struct{}

// NewNoopSocketMetrics returns a SocketMetrics that records nothing.
func NewNoopSocketMetrics() SocketMetrics {
	return noopSocketMetrics{}
}

func (noopSocketMetrics) RecordRequest(string, time.Duration, string) {}
func (noopSocketMetrics) RecordRequestStart(string)                   {}
func (noopSocketMetrics) RecordRequestEnd(string)                     {}
func (noopSocketMetrics) RecordProtocolError()                        {}
func (noopSocketMetrics) RecordRateLimited()                          {}
func (noopSocketMetrics) SetActiveConnections(int32)                  {}
func (noopSocketMetrics) RecordConnectionAccepted()                   {}
func (noopSocketMetrics) RecordConnectionClosed()                     {}
func (noopSocketMetrics) RecordConnectionForceClosed()                {}
