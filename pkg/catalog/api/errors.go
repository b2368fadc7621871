package api

import (
	"errors"
	"net/http"

	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/envelope"
)

// toHTTPError maps domain errors onto envelope HTTP errors. Errors it does
// not recognize are returned unchanged and end up as a generic 500.
func toHTTPError(err error) error {
	var httpErr *envelope.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return envelope.NewHTTPError(http.StatusRequestEntityTooLarge, envelope.Detail("Request body too large."), err)
	case catalog.IsValidation(err):
		return envelope.NewHTTPError(http.StatusBadRequest, catalog.FieldErrors(err), err)
	case catalog.IsNotFound(err):
		return envelope.NewHTTPError(http.StatusNotFound, envelope.Detail("Not found."), err)
	default:
		return err
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	envelope.Fail(w, r, toHTTPError(err))
}

func badRequest(field, msg string, err error) error {
	return envelope.NewHTTPError(http.StatusBadRequest, map[string][]string{field: {msg}}, err)
}

func unauthorized(msg string, err error) error {
	return envelope.NewHTTPError(http.StatusUnauthorized, envelope.Detail(msg), err)
}
