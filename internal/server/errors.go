package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/search-runner/internal/queue"
	"github.com/jonathan/search-runner/internal/runner"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var searchNotFound *runner.ErrSearchNotFound
	var jobNotFound *runner.ErrJobNotFound
	var searchExists *runner.ErrSearchExists
	var validation *runner.ErrValidation
	var launch *queue.LaunchError

	switch {
	case errors.As(err, &searchNotFound), errors.As(err, &jobNotFound):
		return http.StatusNotFound
	case errors.As(err, &searchExists):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &launch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
