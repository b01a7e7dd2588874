// Package metrics defines the optional observability hooks of the SMB
// client.
package metrics

import "time"

// Metrics receives protocol events from a connection and its sessions.
//
// The interface is optional: pass nil to disable collection. Callers go
// through the package helpers, which tolerate a nil Metrics.
type Metrics interface {
	// RecordRequest records one completed request.
	//
	// Parameters:
	//   - command: SMB2 command name (e.g. "CREATE", "READ")
	//   - status: NTSTATUS name of the response, or "TRANSPORT_ERROR"
	//   - duration: time from send to the final response
	RecordRequest(command string, status string, duration time.Duration)

	// RecordBytes records payload bytes moved by READ or WRITE.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: payload size
	RecordBytes(direction string, bytes uint64)

	// RecordCredits records the credits granted by the last response.
	RecordCredits(granted uint16)

	// RecordDisconnect counts a connection torn down by an error.
	RecordDisconnect()
}

// Directions for RecordBytes.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// RecordRequest forwards to m when it is not nil.
func RecordRequest(m Metrics, command, status string, d time.Duration) {
	if m != nil {
		m.RecordRequest(command, status, d)
	}
}

// RecordBytes forwards to m when it is not nil.
func RecordBytes(m Metrics, direction string, n int) {
	if m != nil && n > 0 {
		m.RecordBytes(direction, uint64(n))
	}
}

// RecordCredits forwards to m when it is not nil.
func RecordCredits(m Metrics, granted uint16) {
	if m != nil {
		m.RecordCredits(granted)
	}
}

// RecordDisconnect forwards to m when it is not nil.
func RecordDisconnect(m Metrics) {
	if m != nil {
		m.RecordDisconnect()
	}
}
