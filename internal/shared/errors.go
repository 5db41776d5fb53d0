package shared

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeConfiguration      Code = "configuration_error"
	CodeNetwork            Code = "network_error"
	CodeAPI                Code = "api_error"
	CodeServiceUnavailable Code = "service_unavailable"
	CodeStorage            Code = "storage_error"
	CodeAssembly           Code = "assembly_error"
)

// StructuredError is the error shape carried on streaming `error` events and
// ingestion responses. Recoverable tells the consumer whether a retry makes sense.
type StructuredError struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

func (e *StructuredError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func ValidationError(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func ConfigurationError(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...)}
}

func NetworkError(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeNetwork, Message: fmt.Sprintf(format, args...), Recoverable: true}
}

// APIError classifies a backend rejection by status: 5xx and 429 are recoverable,
// everything else is not.
func APIError(status int, format string, args ...any) *StructuredError {
	return &StructuredError{
		Code:        CodeAPI,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: status >= 500 || status == http.StatusTooManyRequests,
	}
}

func ServiceUnavailable(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeServiceUnavailable, Message: fmt.Sprintf(format, args...), Recoverable: true}
}

func StorageError(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeStorage, Message: fmt.Sprintf(format, args...)}
}

func AssemblyError(format string, args ...any) *StructuredError {
	return &StructuredError{Code: CodeAssembly, Message: fmt.Sprintf(format, args...)}
}

// Coerce returns err as a StructuredError, wrapping anything else as a
// non-recoverable assembly fault so the streaming channel never carries a bare error.
func Coerce(err error) *StructuredError {
	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}
	return &StructuredError{Code: CodeAssembly, Message: err.Error()}
}

// StatusFor maps an error to the HTTP status the ingestion surface responds with.
// Retryable conditions land on 5xx so clients back off and retry; validation stays
// on 400.
func StatusFor(e *StructuredError) int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeNetwork, CodeAPI:
		if e.Recoverable {
			return http.StatusBadGateway
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (e *StructuredError) ToHTTP() *echo.HTTPError {
	return echo.NewHTTPError(StatusFor(e), e)
}

func BadRequest(code Code, message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, &StructuredError{Code: code, Message: message})
}

func Unauthorized(code Code, message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, &StructuredError{Code: code, Message: message})
}

func NotFoundError(code Code, message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, &StructuredError{Code: code, Message: message})
}

func ConflictError(code Code, message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, &StructuredError{Code: code, Message: message})
}

func InternalError(code Code, message string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, &StructuredError{Code: code, Message: message})
}
