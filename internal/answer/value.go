// Package answer defines the tagged answer value and the free-text
// extraction rules that turn LLM responses into submittable answers.
package answer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the underlying answer type.
type Kind int

const (
	KindNone Kind = iota
	KindNumber
	KindString
	KindBool
	KindJSON
	KindDataURI
)

// Value is a tagged answer. Numbers keep int/float distinction so that
// submissions serialize "42" rather than "42.0" for integer answers.
type Value struct {
	kind    Kind
	num     float64
	integer bool
	i       int64
	str     string
	b       bool
	raw     interface{}
}

// Int returns an integer number answer.
func Int(v int64) Value {
	return Value{kind: KindNumber, num: float64(v), integer: true, i: v}
}

// Float returns a floating-point number answer.
func Float(v float64) Value {
	return Value{kind: KindNumber, num: v}
}

// Bool returns a boolean answer.
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// String returns a string answer. Strings beginning with "data:" are
// tagged as data URIs so they can be logged without dumping payloads.
func String(s string) Value {
	if strings.HasPrefix(s, "data:") {
		return Value{kind: KindDataURI, str: s}
	}
	return Value{kind: KindString, str: s}
}

// JSON returns a structured answer from an already-decoded value.
func JSON(v interface{}) Value {
	return Value{kind: KindJSON, raw: v}
}

// FromDecoded converts a json.Unmarshal product into a tagged Value.
func FromDecoded(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case bool:
		return Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case string:
		return String(t)
	default:
		return JSON(t)
	}
}

// Kind returns the answer kind.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether the value carries no answer.
func (v Value) IsZero() bool { return v.kind == KindNone }

// AsFloat returns the numeric value.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsInt returns the integer value when the number is integral.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber || !v.integer {
		return 0, false
	}
	return v.i, true
}

// AsString returns the string or data-URI value.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString && v.kind != KindDataURI {
		return "", false
	}
	return v.str, true
}

// AsBool returns the boolean value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsJSON returns the structured value.
func (v Value) AsJSON() (interface{}, bool) {
	if v.kind != KindJSON {
		return nil, false
	}
	return v.raw, true
}

// MarshalJSON serializes the answer for the submission payload.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if v.integer {
			return json.Marshal(v.i)
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindString, KindDataURI:
		return json.Marshal(v.str)
	case KindJSON:
		return json.Marshal(v.raw)
	default:
		return []byte("null"), nil
	}
}

// String renders the answer for logs, truncating data URIs.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		if v.integer {
			return fmt.Sprintf("%d", v.i)
		}
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindString:
		return v.str
	case KindDataURI:
		if len(v.str) > 64 {
			return v.str[:64] + fmt.Sprintf("...(%d bytes)", len(v.str))
		}
		return v.str
	case KindJSON:
		data, err := json.Marshal(v.raw)
		if err != nil {
			return fmt.Sprintf("%v", v.raw)
		}
		return string(data)
	default:
		return "<none>"
	}
}
