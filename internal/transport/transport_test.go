package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/joseph-ayodele/finreport/internal/extract"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func mustParse(t *testing.T, s string) extract.Result {
	t.Helper()
	r, err := extract.ParseResult([]byte(s))
	if err != nil {
		t.Fatalf("ParseResult(%s): %v", s, err)
	}
	return r
}

var samples = []string{
	`{}`,
	`{"Q1 FY2023-24":{"Revenue":500,"PBT":200,"Net Profit":300}}`,
	`{"Q1 FY2023-24":{"Revenue":1.25e6,"PBT":-12.5},"Q2 FY2023-24":{"Net Profit":0}}`,
	`{"notes":"50% up & rising + more / ₹ \"quoted\"","nested":{"list":[1,"two",true,null,{"k":[]}]}}`,
	`{"weird keys ?#=&":{"a b":"c%20d"}}`,
}

func TestQueryCodecRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewQueryCodec(quiet())
	for _, s := range samples {
		in := mustParse(t, s)
		enc, err := c.Encode(in)
		if err != nil {
			t.Fatalf("Encode(%s): %v", s, err)
		}
		if strings.ContainsAny(enc, " &=?#+\"{}") {
			t.Fatalf("encoded payload is not query-safe: %q", enc)
		}
		if got := c.Decode(enc); !reflect.DeepEqual(got, in) {
			t.Fatalf("round trip of %s = %#v", s, got)
		}
	}
}

func TestQueryCodecPreservesLargeNumbers(t *testing.T) {
	t.Parallel()

	c := NewQueryCodec(quiet())
	in := mustParse(t, `{"Q":{"Revenue":123456789012345678901234567890}}`)
	enc, _ := c.Encode(in)
	got := c.Decode(enc)
	if n := got.Period("Q")["Revenue"].(json.Number); n.String() != "123456789012345678901234567890" {
		t.Fatalf("Revenue = %s", n)
	}
}

func TestQueryCodecDecodeFailsOpen(t *testing.T) {
	t.Parallel()

	c := NewQueryCodec(quiet())
	for _, raw := range []string{
		"",
		"   ",
		"%E0%A4%A",
		"%zz%7B%7D",
		"%7Bnot-json",
		"%5B1%2C2%5D",
		"null",
	} {
		got := c.Decode(raw)
		if got == nil || len(got) != 0 {
			t.Fatalf("Decode(%q) = %#v, want empty result", raw, got)
		}
	}
}

func TestEscapeComponentMatchesEncodeURIComponent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		`{"a b":1}`:   "%7B%22a%20b%22%3A1%7D",
		"-_.!~*'()":   "-_.!~*'()",
		"a+b/c?d=e&f": "a%2Bb%2Fc%3Fd%3De%26f",
		"₹":           "%E2%82%B9",
	}
	for in, want := range cases {
		if got := EscapeComponent(in); got != want {
			t.Fatalf("EscapeComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQueryCodecTarget(t *testing.T) {
	t.Parallel()

	c := NewQueryCodec(quiet())
	in := mustParse(t, samples[1])
	target, err := c.Target("http://localhost:8080/chart?theme=dark", in)
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse target: %v", err)
	}
	if u.Path != "/chart" || u.Query().Get("theme") != "dark" {
		t.Fatalf("target = %s", target)
	}
	if got := c.FromURL(u); !reflect.DeepEqual(got, in) {
		t.Fatalf("FromURL = %#v", got)
	}
	if got := c.FromURL(nil); len(got) != 0 {
		t.Fatalf("FromURL(nil) = %#v", got)
	}
}

func TestMessageCodecRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewMessageCodec(quiet())
	for _, s := range samples {
		in := mustParse(t, s)
		enc, err := c.Encode(in)
		if err != nil {
			t.Fatalf("Encode(%s): %v", s, err)
		}
		if url.QueryEscape(enc) != enc {
			t.Fatalf("payload %q is not url-safe", enc)
		}
		got := c.Decode(enc)
		// numbers come back in shortest float form
		want := mustParse(t, canonicalFloats(t, s))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip of %s = %#v, want %#v", s, got, want)
		}
	}
}

// canonicalFloats rewrites every number in s into its shortest float64 form.
func canonicalFloats(t *testing.T, s string) string {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestMessageCodecDecodeFailsOpen(t *testing.T) {
	t.Parallel()

	c := NewMessageCodec(quiet())
	for _, raw := range []string{"", "***", "AAAA", "not base64!"} {
		if got := c.Decode(raw); got == nil || len(got) != 0 {
			t.Fatalf("Decode(%q) = %#v", raw, got)
		}
	}
}

func TestHandoffCodecSingleUse(t *testing.T) {
	t.Parallel()

	c := NewHandoffCodec(time.Minute, quiet())
	in := mustParse(t, samples[1])
	tok, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := c.Decode(tok); !reflect.DeepEqual(got, in) {
		t.Fatalf("Decode = %#v", got)
	}
	if got := c.Decode(tok); len(got) != 0 {
		t.Fatal("token redeemed twice")
	}
	if got := c.Decode("unknown"); len(got) != 0 {
		t.Fatal("unknown token decoded")
	}
}

func TestHandoffCodecExpiry(t *testing.T) {
	t.Parallel()

	c := NewHandoffCodec(time.Minute, quiet())
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	stale, _ := c.Encode(mustParse(t, samples[1]))
	now = now.Add(2 * time.Minute)
	if got := c.Decode(stale); len(got) != 0 {
		t.Fatal("expired token decoded")
	}

	_, _ = c.Encode(extract.Result{})
	_, _ = c.Encode(extract.Result{})
	now = now.Add(2 * time.Minute)
	_, _ = c.Encode(extract.Result{})
	if c.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 after sweep", c.Pending())
	}
}

func TestNavigatorsRoundTripThroughURL(t *testing.T) {
	t.Parallel()

	in := mustParse(t, samples[1])
	for name, nav := range map[string]Navigator{
		"query":   NewQueryCodec(quiet()),
		"message": NewMessageCodec(quiet()),
		"handoff": NewHandoffCodec(time.Minute, quiet()),
	} {
		target, err := nav.Target("/chart", in)
		if err != nil {
			t.Fatalf("%s Target: %v", name, err)
		}
		if !strings.HasPrefix(target, "/chart?data=") {
			t.Fatalf("%s target = %q", name, target)
		}
		u, err := url.Parse(target)
		if err != nil {
			t.Fatalf("%s parse: %v", name, err)
		}
		if got := nav.FromURL(u); !reflect.DeepEqual(got, in) {
			t.Fatalf("%s FromURL = %#v", name, got)
		}
	}
}

func TestNewSelectsNavigator(t *testing.T) {
	t.Parallel()

	cases := map[string]any{
		"":        &QueryCodec{},
		"query":   &QueryCodec{},
		"message": &MessageCodec{},
		"handoff": &HandoffCodec{},
	}
	for kind, want := range cases {
		nav, err := New(kind, time.Minute, quiet())
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		if reflect.TypeOf(nav) != reflect.TypeOf(want) {
			t.Errorf("New(%q) = %T, want %T", kind, nav, want)
		}
	}
	if _, err := New("carrier-pigeon", 0, quiet()); err == nil {
		t.Fatal("want error for unknown transport")
	}
}
