package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/shorts-autopilot/internal/poll"
	"github.com/jonathan/shorts-autopilot/internal/workflow"
)

// ErrNotFound indicates a record does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrBusy indicates another run of the same operation is in progress.
type ErrBusy struct {
	Operation string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("%s already in progress", e.Operation)
}

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		notFound  *ErrNotFound
		busy      *ErrBusy
		invalid   *ErrValidation
		rejected  *workflow.RetryRejectedError
		timeout   *poll.TimeoutError
		stepError *workflow.StepError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notFound),
		errors.Is(err, workflow.ErrJobNotFound),
		errors.Is(err, workflow.ErrNicheNotFound):
		return http.StatusNotFound
	case errors.As(err, &busy), errors.As(err, &rejected):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &stepError):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
