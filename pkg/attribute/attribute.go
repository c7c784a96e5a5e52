// Package attribute models annotation attribute values and decides whether a
// required attribute has been filled in.
package attribute

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnsupportedShape is returned when a JSON attribute value is not null, a
// string, a number or an array of numbers.
var ErrUnsupportedShape = errors.New("unsupported attribute value shape")

// Value is one of Absent, Text, Numeric or NumericList. A nil Value is
// treated as Absent. Pointers to the four cases are accepted and read through;
// a nil pointer is Absent.
type Value interface {
	isValue()
}

// Absent marks an attribute that was never set, or was explicitly null.
type Absent struct{}

// Text is a single string value.
type Text string

// Numeric is a single number value.
type Numeric float64

// NumericList is a multi-select numeric value, e.g. several class indices.
type NumericList []float64

func (Absent) isValue()      {}
func (Text) isValue()        {}
func (Numeric) isValue()     {}
func (NumericList) isValue() {}

// IsRequiredAttributeValueEmpty reports whether v counts as unset for a
// required attribute: absent, null, an empty string or an empty list.
// Any number, including 0, is not empty.
func IsRequiredAttributeValueEmpty(v Value) bool {
	switch val := deref(v).(type) {
	case nil, Absent:
		return true
	case Text:
		return val == ""
	case Numeric:
		return false
	case NumericList:
		return len(val) == 0
	default:
		panic(fmt.Sprintf("attribute: unknown value type %T", v))
	}
}

// Attributes holds the named attribute values of one annotated object.
type Attributes map[string]Value

// Get returns the value for name, or Absent if it is not present.
func (a Attributes) Get(name string) Value {
	if v, ok := a[name]; ok {
		return deref(v)
	}
	return Absent{}
}

// deref maps nil and the pointer forms onto the value cases.
func deref(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Absent{}
	case *Absent:
		return Absent{}
	case *Text:
		if val == nil {
			return Absent{}
		}
		return *val
	case *Numeric:
		if val == nil {
			return Absent{}
		}
		return *val
	case *NumericList:
		if val == nil {
			return Absent{}
		}
		return *val
	}
	return v
}

// MissingRequired returns the required names whose values are empty, in the
// order they appear in required.
func MissingRequired(attrs Attributes, required []string) []string {
	var missing []string
	for _, name := range required {
		if IsRequiredAttributeValueEmpty(attrs.Get(name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

// MarshalJSON encodes Absent as null and the other cases as their natural
// JSON shape. Keys are written in sorted order and a nil map encodes as {}.
func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalValue(a[name])
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes each member into the matching Value case.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Attributes, len(raw))
	for name, msg := range raw {
		v, err := unmarshalValue(msg)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	*a = out
	return nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := deref(v).(type) {
	case nil, Absent:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Numeric:
		return json.Marshal(float64(val))
	case NumericList:
		if val == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]float64(val))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedShape, v)
	}
}

func unmarshalValue(msg json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, ErrUnsupportedShape
	}
	switch trimmed[0] {
	case 'n':
		if string(trimmed) == "null" {
			return Absent{}, nil
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return Text(s), nil
	case '[':
		var elems []*float64
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
		}
		list := make(NumericList, 0, len(elems))
		for i, e := range elems {
			if e == nil {
				return nil, fmt.Errorf("%w: null at index %d", ErrUnsupportedShape, i)
			}
			list = append(list, *e)
		}
		return list, nil
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err == nil {
			return Numeric(f), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, trimmed)
}
