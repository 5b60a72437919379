package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/finreport/internal/extract"
)

// MessageCodec carries a result as a base64url protobuf Struct, for message
// payloads rather than URLs. Numbers travel as float64, so values beyond
// float64 precision are rounded.
type MessageCodec struct {
	logger *slog.Logger
}

func NewMessageCodec(logger *slog.Logger) *MessageCodec {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageCodec{logger: logger}
}

func (c *MessageCodec) Encode(r extract.Result) (string, error) {
	if r == nil {
		r = empty()
	}
	st, err := structpb.NewStruct(map[string]any(r))
	if err != nil {
		return "", fmt.Errorf("build struct: %w", err)
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("marshal struct: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (c *MessageCodec) Decode(raw string) extract.Result {
	raw = strings.TrimRight(strings.TrimSpace(raw), "=")
	if raw == "" {
		return empty()
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		c.logger.Debug("transport.message.base64_failed", "error", err)
		return empty()
	}
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		c.logger.Debug("transport.message.unmarshal_failed", "error", err)
		return empty()
	}
	out := extract.Result{}
	for k, v := range st.GetFields() {
		out[k] = fromValue(v)
	}
	return out
}

// fromValue mirrors Value.AsInterface but yields json.Number for numbers,
// matching what the JSON decoders produce.
func fromValue(v *structpb.Value) any {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return json.Number(strconv.FormatFloat(k.NumberValue, 'f', -1, 64))
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_BoolValue:
		return k.BoolValue
	case *structpb.Value_StructValue:
		m := make(map[string]any, len(k.StructValue.GetFields()))
		for key, fv := range k.StructValue.GetFields() {
			m[key] = fromValue(fv)
		}
		return m
	case *structpb.Value_ListValue:
		vals := k.ListValue.GetValues()
		l := make([]any, len(vals))
		for i, lv := range vals {
			l[i] = fromValue(lv)
		}
		return l
	default:
		return nil
	}
}

// Target attaches the encoded result to base as the data parameter.
func (c *MessageCodec) Target(base string, r extract.Result) (string, error) {
	return target(c, base, r)
}

// FromURL decodes the data parameter of u.
func (c *MessageCodec) FromURL(u *url.URL) extract.Result {
	return fromURL(c, u)
}
