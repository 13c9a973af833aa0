package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer. Modules wrap these so handlers can
// map failures to status codes without knowing module internals.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

// Fielder is implemented by errors that blame a specific input field.
type Fielder interface {
	ProblemField() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	field := ""
	var f Fielder
	if errors.As(err, &f) {
		field = f.ProblemField()
	}
	switch {
	case errors.Is(err, ErrValidation):
		FieldProblem(w, http.StatusBadRequest, "Validation Failed", field, err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
