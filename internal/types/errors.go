package types

import "fmt"

// Error represents an API error
type Error struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"statusCode"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("error: %s", e.Code)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// APIError is a single entry of the remote's error envelope
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIErrors is the remote's error envelope, {"errors": [...]}
type APIErrors struct {
	Errors []*APIError `json:"errors"`
}

// Error implements the error interface
func (e *APIErrors) Error() string {
	if len(e.Errors) == 0 {
		return "API error"
	}
	return e.Errors[0].Message
}
