package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/job-intel/internal/pipeline"
)

// HTTPStatus returns the status code a non-streaming failure maps to.
func HTTPStatus(err error) int {
	var ve *pipeline.ValidationError
	if errors.As(err, &ve) && ve.Status != 0 {
		return ve.Status
	}
	var te *pipeline.TimeoutError
	if errors.As(err, &te) {
		return http.StatusGatewayTimeout
	}
	var ue *pipeline.UpstreamError
	if errors.As(err, &ue) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
