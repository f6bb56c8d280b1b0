package position

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the variant held by a Value.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindText
	KindBool
)

// Value is a number | text | boolean variant. The zero value is the
// number 0.
type Value struct {
	kind ValueKind
	num  float64
	text string
	b    bool
}

func Number(v float64) Value { return Value{kind: KindNumber, num: v} }
func Int(v int) Value        { return Value{kind: KindNumber, num: float64(v)} }
func Text(s string) Value    { return Value{kind: KindText, text: s} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) Float64() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) Text() (string, bool)     { return v.text, v.kind == KindText }
func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }

// Int truncates a number value.
func (v Value) Int() (int, bool) { return int(v.num), v.kind == KindNumber }

func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.num)
	}
}

// Attributes is an ordered mapping of attribute keys to variant values.
// Setting an existing key overwrites in place and keeps its original
// position. Iteration and JSON output follow insertion order.
//
// The zero value is ready to use. Not safe for concurrent mutation;
// records are built by a single decode call.
type Attributes struct {
	keys []Key
	vals map[Key]Value
}

func (a *Attributes) Set(k Key, v Value) {
	if a.vals == nil {
		a.vals = make(map[Key]Value)
	}
	if _, ok := a.vals[k]; !ok {
		a.keys = append(a.keys, k)
	}
	a.vals[k] = v
}

func (a *Attributes) Get(k Key) (Value, bool) {
	v, ok := a.vals[k]
	return v, ok
}

func (a *Attributes) Len() int { return len(a.keys) }

// Keys returns the keys in insertion order. The returned slice is
// shared; callers must not modify it.
func (a *Attributes) Keys() []Key { return a.keys }

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := a.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
