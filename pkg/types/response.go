package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// BackendEnvelope is the success body of the storefront REST backend.
type BackendEnvelope[T any] struct {
	Message  string `json:"message,omitempty"`
	Metadata T      `json:"metadata"`
}

// BackendError is the failure body of the storefront REST backend.
type BackendError struct {
	Message string `json:"message"`
}
