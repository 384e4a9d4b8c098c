package registry

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind identifies the variant held by a metadata Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindList
	KindObject
)

// Value is one metadata entry. Metadata is open-ended per key, but each
// value is one of a closed set of variants so serialization stays
// deterministic.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	List   []string
	Object map[string]string
}

// Metadata is the open string-keyed mapping attached to a record.
type Metadata map[string]Value

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps a float64.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ListValue wraps a string list.
func ListValue(items ...string) Value {
	return Value{Kind: KindList, List: append([]string(nil), items...)}
}

// ObjectValue wraps a flat string map.
func ObjectValue(m map[string]string) Value {
	dup := make(map[string]string, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return Value{Kind: KindObject, Object: dup}
}

// MarshalJSON emits the bare variant value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindObject:
		// Sort keys for deterministic output.
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]string, len(keys))
		for _, k := range keys {
			ordered[k] = v.Object[k]
		}
		return json.Marshal(ordered)
	default:
		return nil, fmt.Errorf("unknown metadata value kind %d", v.Kind)
	}
}

// UnmarshalJSON accepts any of the supported variants and rejects the rest.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = StringValue(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberValue(n)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = BoolValue(b)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = Value{Kind: KindList, List: list}
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err == nil {
		*v = Value{Kind: KindObject, Object: obj}
		return nil
	}
	return fmt.Errorf("metadata value must be a string, number, bool, string list, or flat string object")
}

func (m Metadata) clone() Metadata {
	dup := make(Metadata, len(m))
	for k, v := range m {
		cv := v
		if v.List != nil {
			cv.List = append([]string(nil), v.List...)
		}
		if v.Object != nil {
			cv.Object = make(map[string]string, len(v.Object))
			for ok, ov := range v.Object {
				cv.Object[ok] = ov
			}
		}
		dup[k] = cv
	}
	return dup
}
