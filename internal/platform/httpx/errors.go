package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error codes carried in ErrorBody.Code.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeDuplicate    = "DUPLICATE"
	CodeValidation   = "VALIDATION_ERROR"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHENTICATED"
	CodeInternal     = "INTERNAL_ERROR"
)

// RespondError maps domain errors to JSON error responses.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		RespondValidation(w, verrs)
	case errors.Is(err, ErrNotFound):
		Error(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, ErrDuplicate):
		Error(w, http.StatusConflict, err.Error(), CodeDuplicate)
	case errors.Is(err, ErrValidation):
		Error(w, http.StatusBadRequest, err.Error(), CodeValidation)
	case errors.Is(err, ErrForbidden):
		Error(w, http.StatusForbidden, err.Error(), CodeForbidden)
	case errors.Is(err, ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error(), CodeUnauthorized)
	default:
		Error(w, http.StatusInternalServerError, "internal server error", CodeInternal)
	}
}

// RespondValidation writes a 400 with one message per failed field.
func RespondValidation(w http.ResponseWriter, verrs validator.ValidationErrors) {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	ErrorWithFields(w, http.StatusBadRequest, ErrValidation.Error(), CodeValidation, map[string]any{
		"fields": fields,
	})
}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError returns an error with message msg that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}
