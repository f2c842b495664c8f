package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexNotReady is returned when a query reaches the index before
	// Finalize has computed corpus statistics. This is a deployment fault and
	// must fail the readiness check, never be served around.
	ErrIndexNotReady = errors.New("index not finalized")

	// ErrCollaboratorUnavailable is returned when an external NLP model
	// (NER, lemmatizer, embedder, sentiment) times out or errors. The query
	// fails as retrievable; the pipeline never ranks on partial output.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrMalformedSnapshot is returned when a persisted index snapshot is
	// corrupt or schema-incompatible. Loading is all-or-nothing.
	ErrMalformedSnapshot = errors.New("malformed index snapshot")

	// ErrLemmatizerMismatch is returned when the lemmatizer version recorded
	// in a snapshot differs from the configured one. Scores computed across
	// differing normalizers are meaningless, so the mismatch is fatal.
	ErrLemmatizerMismatch = errors.New("lemmatizer version mismatch")

	ErrDocumentExists   = errors.New("document already indexed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTimeout          = errors.New("operation timed out")
	ErrInternal         = errors.New("internal error")
)

// AppError wraps a sentinel error with a human message and an HTTP status
// for the public surface.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status the public check endpoint
// should answer with. Collaborator failures are 503 so callers retry.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCollaboratorUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrIndexNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
