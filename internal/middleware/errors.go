package middleware

import (
	"net/http"

	"github.com/go-chi/render"

	apperrors "specview/internal/errors"
)

// ProblemFromStatus creates an RFC 7807 problem for an HTTP status code
func ProblemFromStatus(r *http.Request, status int, detail string) *apperrors.ProblemDetails {
	var problemType string

	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		problemType = apperrors.TypeValidation
	case http.StatusNotFound:
		problemType = apperrors.TypeNotFound
	case http.StatusMethodNotAllowed:
		problemType = apperrors.TypeMethodNotAllowed
	case http.StatusTooManyRequests:
		problemType = apperrors.TypeRateLimit
	case http.StatusGatewayTimeout:
		problemType = apperrors.TypeTimeout
	default:
		problemType = apperrors.TypeInternal
	}

	return apperrors.NewProblemDetails(status, problemType, http.StatusText(status), detail, r.URL.Path).
		WithExtension("trace_id", GetRequestID(r.Context()))
}

// writeProblem renders a problem document for status
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Render(w, r, ProblemFromStatus(r, status, detail))
}
