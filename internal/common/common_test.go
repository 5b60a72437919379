package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{"invalid", NewAppError("BAD", "bad input", ErrInvalidInput), http.StatusBadRequest},
		{"validation", NewValidator().Field("file", "", Required).Error(), http.StatusBadRequest},
		{"conflict", WrapError(ErrConflict, "busy"), http.StatusConflict},
		{"unavailable", ErrUnavailable, http.StatusBadGateway},
		{"grpc status", status.Error(codes.NotFound, "gone"), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestCodeForUnauthorized(t *testing.T) {
	if got := Code(ErrUnauthorized); got != codes.Unauthenticated {
		t.Fatalf("Code(ErrUnauthorized) = %v", got)
	}
}

func TestValidatorPDFMediaType(t *testing.T) {
	t.Parallel()

	ok := NewValidator().Field("media_type", "Application/PDF; charset=binary", PDFMediaType)
	if ok.HasErrors() {
		t.Fatalf("unexpected errors: %s", ok.ErrorMessage())
	}

	bad := NewValidator().Field("media_type", "image/png", PDFMediaType)
	if !bad.HasErrors() {
		t.Fatal("expected png to be rejected")
	}
	if got := FirstMessage(bad.Error()); got != "Only PDF files are allowed!" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(bad.Error(), ErrValidation) {
		t.Fatal("validator error should wrap ErrValidation")
	}
}

func TestFirstMessageUsesRuleMessage(t *testing.T) {
	err := error(ValidationError{Field: "media_type", Value: "text/plain", Message: "Only PDF files are allowed!"})
	if got := FirstMessage(err); got != "Only PDF files are allowed!" {
		t.Fatalf("FirstMessage = %q", got)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
}

func TestMaxBytes(t *testing.T) {
	v := NewValidator().Field("payload", make([]byte, 11), MaxBytes(10))
	if !v.HasErrors() {
		t.Fatal("expected size error")
	}
	v = NewValidator().Field("payload", make([]byte, 10), MaxBytes(10))
	if v.HasErrors() {
		t.Fatalf("unexpected error: %s", v.ErrorMessage())
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("EXTRACTION_URL", "http://extractor.local/extract")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CHART_CURRENCY", "INR")
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Chart.PeriodALabel != "Q1 FY2023-24" || cfg.Chart.PeriodBLabel != "Q2 FY2023-24" {
		t.Fatalf("unexpected period labels %+v", cfg.Chart)
	}

	cfg.Chart.Currency = "rupees"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid currency error, got %v", err)
	}

	cfg.Chart.Currency = "INR"
	cfg.Chart.Transport = "carrier-pigeon"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid transport error, got %v", err)
	}

	cfg.Chart.Transport = "query"
	cfg.Extraction.Endpoint = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}

func TestDetachedIgnoresParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(WithSessionID(context.Background(), "s-1"))
	ctx, stop := Detached(parent, time.Minute)
	defer stop()
	cancel()

	if err := ctx.Err(); err != nil {
		t.Fatalf("detached context cancelled with parent: %v", err)
	}
	if got := SessionIDFromContext(ctx); got != "s-1" {
		t.Fatalf("session id not carried: %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf).Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
	NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf).Warn("kept", "k", 1)
	if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("json handler wrote %q", buf.String())
	}

	buf.Reset()
	NewLogger(LogConfig{Level: "nonsense"}, &buf).Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("msg=hello")) {
		t.Fatalf("text handler wrote %q", buf.String())
	}
}
