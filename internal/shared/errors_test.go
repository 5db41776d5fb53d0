package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIErrorRecoverability(t *testing.T) {
	cases := []struct {
		status      int
		recoverable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tc := range cases {
		err := APIError(tc.status, "backend said %d", tc.status)
		if err.Recoverable != tc.recoverable {
			t.Errorf("status %d: recoverable = %v, want %v", tc.status, err.Recoverable, tc.recoverable)
		}
		if err.Code != CodeAPI {
			t.Errorf("status %d: code = %s, want %s", tc.status, err.Code, CodeAPI)
		}
	}
}

func TestValidationErrorNotRecoverable(t *testing.T) {
	err := ValidationError("sample rate %d is not 16000", 44100)
	if err.Recoverable {
		t.Error("validation errors must not be recoverable")
	}
	if err.Message != "sample rate 44100 is not 16000" {
		t.Errorf("unexpected message: %s", err.Message)
	}
}

func TestNetworkErrorRecoverable(t *testing.T) {
	if !NetworkError("connection reset").Recoverable {
		t.Error("network errors must be recoverable")
	}
	if !ServiceUnavailable("warming up").Recoverable {
		t.Error("service_unavailable must be recoverable")
	}
}

func TestCoerce(t *testing.T) {
	se := ValidationError("bad input")
	got := Coerce(fmt.Errorf("wrapped: %w", se))
	if got != se {
		t.Error("Coerce should unwrap to the original StructuredError")
	}

	got = Coerce(errors.New("something broke"))
	if got.Code != CodeAssembly {
		t.Errorf("bare errors should coerce to %s, got %s", CodeAssembly, got.Code)
	}
	if got.Recoverable {
		t.Error("coerced bare errors must not be recoverable")
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    *StructuredError
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{ServiceUnavailable("warming"), http.StatusServiceUnavailable},
		{NetworkError("refused"), http.StatusBadGateway},
		{APIError(http.StatusUnauthorized, "no"), http.StatusBadRequest},
		{APIError(http.StatusInternalServerError, "boom"), http.StatusBadGateway},
		{StorageError("lost"), http.StatusInternalServerError},
		{AssemblyError("corrupt"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.status {
			t.Errorf("StatusFor(%s) = %d, want %d", tc.err.Code, got, tc.status)
		}
	}
}
