package event

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBinary
	KindGUID
	KindPointer
	KindFileTime
	KindSystemTime
	KindSid
	KindArray
	KindStruct
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBool:       "bool",
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindUint8:      "uint8",
	KindUint16:     "uint16",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindString:     "string",
	KindBinary:     "binary",
	KindGUID:       "guid",
	KindPointer:    "pointer",
	KindFileTime:   "filetime",
	KindSystemTime: "systemtime",
	KindSid:        "sid",
	KindArray:      "array",
	KindStruct:     "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a decoded event property. The zero Value is Null.
//
// Signed kinds and FileTime ticks live in i; unsigned kinds, Pointer and
// Bool live in u.
type Value struct {
	kind   Kind
	i      int64
	u      uint64
	f      float64
	s      string
	b      []byte
	g      uuid.UUID
	t      time.Time
	elems  []Value
	fields map[string]Value
}

func Null() Value                { return Value{} }
func Bool(v bool) Value          { return Value{kind: KindBool, u: b2u(v)} }
func Int8(v int8) Value          { return Value{kind: KindInt8, i: int64(v)} }
func Int16(v int16) Value        { return Value{kind: KindInt16, i: int64(v)} }
func Int32(v int32) Value        { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value        { return Value{kind: KindInt64, i: v} }
func Uint8(v uint8) Value        { return Value{kind: KindUint8, u: uint64(v)} }
func Uint16(v uint16) Value      { return Value{kind: KindUint16, u: uint64(v)} }
func Uint32(v uint32) Value      { return Value{kind: KindUint32, u: uint64(v)} }
func Uint64(v uint64) Value      { return Value{kind: KindUint64, u: v} }
func Float32(v float32) Value    { return Value{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Value    { return Value{kind: KindFloat64, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func GUID(v uuid.UUID) Value     { return Value{kind: KindGUID, g: v} }
func Pointer(v uint64) Value     { return Value{kind: KindPointer, u: v} }
func FileTime(ticks int64) Value { return Value{kind: KindFileTime, i: ticks} }
func Sid(v string) Value         { return Value{kind: KindSid, s: v} }

// Binary copies v.
func Binary(v []byte) Value {
	return Value{kind: KindBinary, b: append([]byte(nil), v...)}
}

// SystemTime stores t in UTC.
func SystemTime(t time.Time) Value {
	return Value{kind: KindSystemTime, t: t.UTC()}
}

func Array(elems ...Value) Value {
	return Value{kind: KindArray, elems: elems}
}

func Struct(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindStruct, fields: fields}
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) Elems() []Value { return v.elems }

// Fields returns the members of a Struct value, nil otherwise.
func (v Value) Fields() map[string]Value { return v.fields }

func (v Value) isSigned() bool {
	return v.kind >= KindInt8 && v.kind <= KindInt64
}

func (v Value) isUnsigned() bool {
	return v.kind >= KindUint8 && v.kind <= KindUint64
}

// AsString renders scalar kinds as text. Null, Binary, FileTime,
// SystemTime, Sid, Array and Struct do not convert.
func (v Value) AsString() (string, bool) {
	switch {
	case v.kind == KindString:
		return v.s, true
	case v.kind == KindBool:
		return strconv.FormatBool(v.u == 1), true
	case v.isSigned():
		return strconv.FormatInt(v.i, 10), true
	case v.isUnsigned():
		return strconv.FormatUint(v.u, 10), true
	case v.kind == KindFloat32:
		return strconv.FormatFloat(v.f, 'g', -1, 32), true
	case v.kind == KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64), true
	case v.kind == KindGUID:
		return v.g.String(), true
	case v.kind == KindPointer:
		return fmt.Sprintf("0x%x", v.u), true
	}
	return "", false
}

// AsUint32 succeeds for unsigned kinds up to 32 bits and for non-negative
// signed kinds up to 32 bits.
func (v Value) AsUint32() (uint32, bool) {
	switch v.kind {
	case KindUint8, KindUint16, KindUint32:
		return uint32(v.u), true
	case KindInt8, KindInt16, KindInt32:
		if v.i >= 0 {
			return uint32(v.i), true
		}
	}
	return 0, false
}

// AsUint64 succeeds for every unsigned kind, non-negative signed kinds and
// Pointer.
func (v Value) AsUint64() (uint64, bool) {
	switch {
	case v.isUnsigned(), v.kind == KindPointer:
		return v.u, true
	case v.isSigned():
		if v.i >= 0 {
			return uint64(v.i), true
		}
	}
	return 0, false
}

func (v Value) AsInt64() (int64, bool) {
	switch {
	case v.isSigned():
		return v.i, true
	case v.isUnsigned():
		if v.u <= math.MaxInt64 {
			return int64(v.u), true
		}
	}
	return 0, false
}

func (v Value) AsFloat64() (float64, bool) {
	switch {
	case v.kind == KindFloat32, v.kind == KindFloat64:
		return v.f, true
	case v.isSigned():
		return float64(v.i), true
	case v.isUnsigned():
		return float64(v.u), true
	}
	return 0, false
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.u == 1, true
}

func (v Value) AsBinary() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return v.b, true
}

func (v Value) AsGUID() (uuid.UUID, bool) {
	if v.kind != KindGUID {
		return uuid.Nil, false
	}
	return v.g, true
}

// AsTime converts SystemTime and FileTime values.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindSystemTime:
		return v.t, true
	case KindFileTime:
		return FiletimeToTime(v.i), true
	}
	return time.Time{}, false
}

// AsSid returns the textual SID of a Sid value.
func (v Value) AsSid() (string, bool) {
	if v.kind != KindSid {
		return "", false
	}
	return v.s, true
}

// String formats any kind for display.
func (v Value) String() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	switch v.kind {
	case KindNull:
		return "null"
	case KindBinary:
		return "0x" + fmt.Sprintf("%x", v.b)
	case KindFileTime, KindSystemTime:
		t, _ := v.AsTime()
		return t.Format(time.RFC3339Nano)
	case KindSid:
		return v.s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v.kind.String()
	}
	return string(b)
}

// MarshalJSON renders the value as plain JSON. Binary is base64, GUIDs and
// SIDs are strings, Pointer is a hex string and times are RFC 3339.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.kind == KindNull:
		return []byte("null"), nil
	case v.kind == KindBool:
		return json.Marshal(v.u == 1)
	case v.isSigned():
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case v.isUnsigned():
		return []byte(strconv.FormatUint(v.u, 10)), nil
	case v.kind == KindFloat32, v.kind == KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
		return json.Marshal(v.f)
	case v.kind == KindString, v.kind == KindSid:
		return json.Marshal(v.s)
	case v.kind == KindBinary:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	case v.kind == KindGUID:
		return json.Marshal(v.g.String())
	case v.kind == KindPointer:
		return json.Marshal(fmt.Sprintf("0x%x", v.u))
	case v.kind == KindFileTime, v.kind == KindSystemTime:
		t, _ := v.AsTime()
		return json.Marshal(t.Format(time.RFC3339Nano))
	case v.kind == KindArray:
		if v.elems == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.elems)
	case v.kind == KindStruct:
		return json.Marshal(v.fields)
	}
	return nil, fmt.Errorf("event: cannot marshal value of kind %s", v.kind)
}

// UnmarshalJSON infers a kind from plain JSON: strings become String,
// integral numbers Int64 (or Uint64 when they overflow int64), other numbers
// Float64, objects Struct and arrays Array.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int64(i), nil
		}
		if u, err := strconv.ParseUint(x.String(), 10, 64); err == nil {
			return Uint64(u), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("event: bad number %q: %w", x, err)
		}
		return Float64(f), nil
	case []any:
		elems := make([]Value, 0, len(x))
		for _, e := range x {
			ev, err := fromJSON(e)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, ev)
		}
		return Array(elems...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, e := range x {
			ev, err := fromJSON(e)
			if err != nil {
				return Value{}, err
			}
			fields[k] = ev
		}
		return Struct(fields), nil
	}
	return Value{}, fmt.Errorf("event: unsupported JSON value %T", raw)
}
