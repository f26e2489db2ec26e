package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solfund/fundd/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindValidation, http.StatusBadRequest},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindInsufficientBalance, http.StatusConflict},
		{domain.KindInvalidFundState, http.StatusConflict},
		{domain.KindConflict, http.StatusConflict},
		{domain.KindPricingDegraded, http.StatusBadGateway},
		{domain.KindPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestWriteDomainErrorExposesClientFaults(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, "buying tokens", fmt.Errorf("amount %q: %w", "-5", domain.ErrInvalidAmount))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if body["kind"] != string(domain.KindValidation) {
		t.Errorf("kind = %q, want %q", body["kind"], domain.KindValidation)
	}
	if body["error"] == "" || body["error"] == "internal error" {
		t.Errorf("error = %q, want the domain message", body["error"])
	}
}

func TestWriteDomainErrorHidesInternalFaults(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, "buying tokens", errors.New("pgx: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshaling body: %v", err)
	}
	if body["error"] != "internal error" {
		t.Errorf("error = %q, internals must not leak", body["error"])
	}
}

func TestWriteJSONSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
