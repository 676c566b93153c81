// Package response defines the uniform JSON envelope returned by every
// endpoint: {success, data, message, errorCode?, errorDescription?,
// timestamp}. Raw errors and stack traces never reach the client; failures
// carry a short machine-readable code plus a longer description.
package response

import "time"

// Envelope is the body of every API response.
type Envelope struct {
	Success          bool        `json:"success"`
	Data             interface{} `json:"data"`
	Message          string      `json:"message"`
	ErrorCode        string      `json:"errorCode,omitempty"`
	ErrorDescription string      `json:"errorDescription,omitempty"`
	Timestamp        string      `json:"timestamp"`
}

// OK wraps data in a success envelope.
func OK(message string, data interface{}) Envelope {
	return Envelope{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Error builds a failure envelope with a machine-readable code.
func Error(message, code, description string) Envelope {
	return Envelope{
		Success:          false,
		Message:          message,
		ErrorCode:        code,
		ErrorDescription: description,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}
