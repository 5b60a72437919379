// Package transport carries an extraction result across a navigation
// boundary. Every codec fails open: whatever arrives on the receiving side,
// Decode returns a Result, empty when the input was unusable.
package transport

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/extract"
)

// Codec turns a result into a transport-safe string and back.
type Codec interface {
	Encode(r extract.Result) (string, error)
	Decode(raw string) extract.Result
}

// Navigator is a Codec that also knows how to attach its payload to a view
// address and read it back from one.
type Navigator interface {
	Codec
	Target(base string, r extract.Result) (string, error)
	FromURL(u *url.URL) extract.Result
}

// New returns the navigator named kind: "query" (the default), "message" or
// "handoff". ttl only applies to handoff tokens.
func New(kind string, ttl time.Duration, logger *slog.Logger) (Navigator, error) {
	switch kind {
	case "", "query":
		return NewQueryCodec(logger), nil
	case "message":
		return NewMessageCodec(logger), nil
	case "handoff":
		return NewHandoffCodec(ttl, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}

func empty() extract.Result { return extract.Result{} }

// withParam appends name=payload to base. payload must already be query-safe.
func withParam(base, name, payload string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse target %q: %w", base, err)
	}
	param := name + "=" + payload
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String(), nil
}

// target and fromURL serve the codecs whose payloads are already URL-safe.
func target(c Codec, base string, r extract.Result) (string, error) {
	payload, err := c.Encode(r)
	if err != nil {
		return "", err
	}
	return withParam(base, constants.TransportParamData, EscapeComponent(payload))
}

func fromURL(c Codec, u *url.URL) extract.Result {
	if u == nil {
		return empty()
	}
	return c.Decode(u.Query().Get(constants.TransportParamData))
}
