package webhooks

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is a decoded webhook body. Providers disagree on field layout, so
// handlers read values through path lookups with per-provider fallbacks
// instead of binding to a struct.
type Payload map[string]any

func parsePayload(raw json.RawMessage) Payload {
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Payload{}
	}
	return decoded
}

func (p Payload) valueAt(path ...string) (any, bool) {
	var current any = map[string]any(p)
	for _, key := range path {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String walks the path and returns the string value, or "" when the path
// is absent or not a string.
func (p Payload) String(path ...string) string {
	value, ok := p.valueAt(path...)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// FirstString returns the first non-empty string among the given paths.
func (p Payload) FirstString(paths ...[]string) string {
	for _, path := range paths {
		if s := p.String(path...); s != "" {
			return s
		}
	}
	return ""
}

// Amount reads a monetary value at the first matching path. Providers send
// amounts as JSON numbers or strings; both decode into a decimal so cents
// are never mangled by float rounding.
func (p Payload) Amount(paths ...[]string) decimal.Decimal {
	for _, path := range paths {
		value, ok := p.valueAt(path...)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			return decimal.NewFromFloat(v)
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				return d
			}
		case json.Number:
			if d, err := decimal.NewFromString(v.String()); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

// Time reads a timestamp at the first matching path. Unix epoch seconds and
// RFC 3339 strings are both accepted.
func (p Payload) Time(paths ...[]string) *time.Time {
	for _, path := range paths {
		value, ok := p.valueAt(path...)
		if !ok {
			continue
		}
		switch v := value.(type) {
		case float64:
			t := time.Unix(int64(v), 0).UTC()
			return &t
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return &t
			}
		}
	}
	return nil
}
