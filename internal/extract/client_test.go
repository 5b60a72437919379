package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joseph-ayodele/finreport/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc, lenient bool) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Endpoint: srv.URL, Timeout: 5 * time.Second, LenientJSON: lenient, MaxPeriods: 8}, quietLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestExtractSuccess(t *testing.T) {
	t.Parallel()

	var got Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if r.Header.Get("X-Request-ID") != "req-42" {
			t.Errorf("request id header = %q", r.Header.Get("X-Request-ID"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"Q1 FY2023-24":{"Revenue":500,"PBT":200,"Net Profit":300}}`)
	}, false)

	ctx := common.WithRequestID(context.Background(), "req-42")
	res, err := c.Extract(ctx, "https://files.example.com/files/a.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.PDFURL != "https://files.example.com/files/a.pdf" {
		t.Fatalf("pdf_url = %q", got.PDFURL)
	}
	q1 := res.Period("Q1 FY2023-24")
	if q1 == nil {
		t.Fatalf("missing period in %v", res)
	}
	if n, ok := q1["Revenue"].(json.Number); !ok || n.String() != "500" {
		t.Fatalf("Revenue = %#v", q1["Revenue"])
	}
	if c.InFlight() {
		t.Fatal("in-flight flag not cleared")
	}
}

func TestExtractStatusError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}, false)

	_, err := c.Extract(context.Background(), "https://files.example.com/files/a.pdf")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want *StatusError, got %T %v", err, err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", se.StatusCode)
	}
	if IsMalformed(err) {
		t.Fatal("status error must not be reported as malformed")
	}
	if common.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("HTTPStatus = %d", common.HTTPStatus(err))
	}
}

func TestExtractMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"not json", "definitely not json"},
		{"array", `[1,2,3]`},
		{"trailing garbage", `{"a":{}} {"b":{}}`},
		{"too many periods", `{"1":{},"2":{},"3":{},"4":{},"5":{},"6":{},"7":{},"8":{},"9":{}}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			}, false)
			_, err := c.Extract(context.Background(), "https://files.example.com/files/a.pdf")
			if !IsMalformed(err) {
				t.Fatalf("want malformed error, got %v", err)
			}
			if IsStatusError(err) {
				t.Fatal("malformed body reported as status error")
			}
		})
	}
}

func TestExtractLenientRepair(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{'Q1 FY2023-24': {'Revenue': 500,},}`)
	}, true)

	res, err := c.Extract(context.Background(), "https://files.example.com/files/a.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Period("Q1 FY2023-24") == nil {
		t.Fatalf("repaired result lost its period: %v", res)
	}
}

func TestExtractRejectsBadReference(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("service must not be called")
	}, false)

	for _, ref := range []string{"", "not a url", "ftp://host/a.pdf", "/files/a.pdf"} {
		if _, err := c.Extract(context.Background(), ref); !errors.Is(err, common.ErrInvalidInput) {
			t.Fatalf("Extract(%q) err = %v", ref, err)
		}
	}
}

func TestExtractInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{}`)
	}, false)

	done := make(chan error, 1)
	go func() {
		_, err := c.Extract(context.Background(), "https://files.example.com/files/a.pdf")
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !c.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("first extraction never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := c.Extract(context.Background(), "https://files.example.com/files/a.pdf"); !errors.Is(err, ErrExtractionInFlight) {
		t.Fatalf("second Extract err = %v, want ErrExtractionInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Extract: %v", err)
	}
}

func TestExtractIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		_, _ = io.WriteString(w, `{"Q1 FY2023-24":{}}`)
	}, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res, err := c.Extract(ctx, "https://files.example.com/files/a.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Empty() {
		t.Fatal("expected a result")
	}
}

func TestParseResultKeepsNumbers(t *testing.T) {
	t.Parallel()

	res, err := ParseResult([]byte(`{"Q":{"Revenue":12345678901234567890.5}}`))
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	n, ok := res.Period("Q")["Revenue"].(json.Number)
	if !ok || n.String() != "12345678901234567890.5" {
		t.Fatalf("Revenue = %#v", res.Period("Q")["Revenue"])
	}
	if _, err := ParseResult([]byte(`"string"`)); !errors.Is(err, ErrNotObject) {
		t.Fatalf("want ErrNotObject, got %v", err)
	}
}
