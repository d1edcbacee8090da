// Package toolargs turns raw tool-call argument payloads into structured maps
// and checks the per-tool required-argument contract.
package toolargs

import (
	"strings"

	"github.com/harunnryd/mcpchat/pkg/value"
)

// Coerce converts raw arguments into a map. It accepts maps, JSON object text
// and, as a last resort, loose "key: value, key2: value2" text. Anything else
// yields an empty map. Coerce never fails.
func Coerce(raw any) *value.Map {
	switch v := raw.(type) {
	case nil:
		return value.NewMap()
	case *value.Map:
		if v == nil {
			return value.NewMap()
		}
		return v.Clone()
	case value.Value:
		if m, ok := v.AsMap(); ok {
			return m.Clone()
		}
		if s, ok := v.AsString(); ok {
			return CoerceText(s)
		}
		return value.NewMap()
	case map[string]any:
		if m, ok := value.FromAny(v).AsMap(); ok {
			return m
		}
		return value.NewMap()
	case string:
		return CoerceText(v)
	case []byte:
		return CoerceText(string(v))
	default:
		return value.NewMap()
	}
}

// CoerceText parses argument text. JSON that is not an object is rejected;
// text that is not JSON at all goes through the loose key/value fallback.
func CoerceText(raw string) *value.Map {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return value.NewMap()
	}
	v, err := value.ParseString(raw)
	if err == nil {
		if m, ok := v.AsMap(); ok {
			return m
		}
		return value.NewMap()
	}
	return parseLoose(raw)
}

// parseLoose splits on commas, then on the first colon of each part.
func parseLoose(raw string) *value.Map {
	out := value.NewMap()
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out.Set(k, value.String(strings.Trim(strings.TrimSpace(v), `'"`)))
	}
	return out
}
