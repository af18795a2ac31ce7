package api

import "errors"

// Storage-level sentinels shared by repositories. Services translate them into domain errors.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
)

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}

// ErrorBody is the shape written by ErrorResponse.
type ErrorBody struct {
	Success   bool   `json:"success" example:"false"`
	Error     string `json:"error" example:"Invalid credentials"`
	RequestID string `json:"request_id,omitempty" example:"host/abc-000001"`
}
