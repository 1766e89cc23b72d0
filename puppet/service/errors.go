package service

import (
	"errors"
	"fmt"
)

// APIError is a failure reported by the puppet service.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("puppet service: %s", e.Code)
	}
	return fmt.Sprintf("puppet service: %s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is an APIError for a missing entity.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == 404 || apiErr.Code == "NOT_FOUND")
}

// errHeartbeatTimeout is returned when a heartbeat is not answered in time.
var errHeartbeatTimeout = errors.New("puppet service: heartbeat timeout")
