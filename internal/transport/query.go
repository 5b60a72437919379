package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/extract"
)

// QueryCodec percent-encodes the JSON form of a result so it can ride in a
// single query parameter.
type QueryCodec struct {
	Param  string
	logger *slog.Logger
}

func NewQueryCodec(logger *slog.Logger) *QueryCodec {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCodec{Param: constants.TransportParamData, logger: logger}
}

func (c *QueryCodec) Encode(r extract.Result) (string, error) {
	if r == nil {
		r = empty()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(r)); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return EscapeComponent(strings.TrimSuffix(buf.String(), "\n")), nil
}

func (c *QueryCodec) Decode(raw string) extract.Result {
	if strings.TrimSpace(raw) == "" {
		return empty()
	}
	text, err := url.PathUnescape(raw)
	if err != nil {
		c.logger.Debug("transport.query.unescape_failed", "error", err, "bytes", len(raw))
		return empty()
	}
	res, err := extract.ParseResult([]byte(text))
	if err != nil {
		c.logger.Debug("transport.query.parse_failed", "error", err, "bytes", len(raw))
		return empty()
	}
	return res
}

// Target appends the encoded result to base as the codec's query parameter.
// Other parameters already on base are kept.
func (c *QueryCodec) Target(base string, r extract.Result) (string, error) {
	payload, err := c.Encode(r)
	if err != nil {
		return "", err
	}
	return withParam(base, c.Param, payload)
}

// FromURL decodes the codec's parameter straight from a raw query string, so
// the payload is unescaped exactly once.
func (c *QueryCodec) FromURL(u *url.URL) extract.Result {
	if u == nil {
		return empty()
	}
	return c.Decode(RawParam(u.RawQuery, c.Param))
}

// RawParam returns the still-escaped value of the first name= pair in rawQuery.
func RawParam(rawQuery, name string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == name {
			return v
		}
	}
	return ""
}

// EscapeComponent escapes s the way encodeURIComponent does: everything but
// ASCII letters, digits and -_.!~*'() becomes %XX of its UTF-8 bytes.
func EscapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if unreservedComponent(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0x0f])
	}
	return b.String()
}

func unreservedComponent(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	switch ch {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
