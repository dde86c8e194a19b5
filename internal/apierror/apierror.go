// Package apierror holds the JSON envelopes of every 4xx/5xx response.
// Internal errors never reach the client: 5xx bodies carry a fixed message
// and the request id to correlate with the server log.
package apierror

const msgInterno = "Error interno del servidor"

// APIError is the canonical error envelope.
type APIError struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Internal is the body of every 500 response.
func Internal(requestID string) *APIError {
	return &APIError{Detail: msgInterno, RequestID: requestID}
}

// ValidationError lists the failing fields with the validator tag that failed.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
