package canon

import (
	"bytes"
	"encoding/json"
)

// NamedValue is one lifted record field.
type NamedValue struct {
	Value any
	Name  string
}

// RecordValue is a lifted record with fields in declaration order. It is
// also accepted when lowering a record argument.
type RecordValue []NamedValue

// Get returns the value of the named field.
func (r RecordValue) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Map returns the fields keyed by name. Nested records are left as
// RecordValue.
func (r RecordValue) Map() map[string]any {
	m := make(map[string]any, len(r))
	for _, f := range r {
		m[f.Name] = f.Value
	}
	return m
}

// MarshalJSON encodes the record as an object, keeping field order.
func (r RecordValue) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
