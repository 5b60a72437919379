package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Result is the untrusted extraction payload: period label -> metric label -> value.
// Values are whatever JSON carried; numbers are kept as json.Number so that a
// result survives encode/decode without losing precision. Nothing about its
// shape is guaranteed beyond being a JSON object.
type Result map[string]any

// ErrNotObject is returned when a payload is valid JSON but not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

// ParseResult decodes a JSON object into a Result, keeping numbers as json.Number.
func ParseResult(data []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode json: trailing data after object")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Result(m), nil
}

// Period returns the metric mapping for a period label, or nil when the label
// is absent or does not map to an object.
func (r Result) Period(label string) map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r[label].(map[string]any)
	return m
}

// Labels returns the period labels present in the result, in no particular order.
func (r Result) Labels() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

// Empty reports whether the result carries no periods at all.
func (r Result) Empty() bool {
	return len(r) == 0
}
