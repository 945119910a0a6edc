package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseJSON decodes a single JSON document into a Result.
// Object field order is preserved. Integral numbers become Int, others Float.
func ParseJSON(data []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	r, err := DecodeJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return r, nil
}

// DecodeJSON decodes the next JSON value from dec.
// dec should have UseNumber enabled; plain float64 tokens are accepted too.
func DecodeJSON(dec *json.Decoder) (Result, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Result, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				elem, err := DecodeJSON(dec)
				if err != nil {
					return nil, fmt.Errorf("array[%d]: %w", len(arr), err)
				}
				arr = append(arr, elem)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			var fields []Field
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, not string", keyTok)
				}
				val, err := DecodeJSON(dec)
				if err != nil {
					return nil, fmt.Errorf("object[%q]: %w", key, err)
				}
				fields = append(fields, Field{Name: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return NewObject(fields...), nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case nil:
		return NewScalar(Null{}), nil
	case bool:
		return NewScalar(Bool(t)), nil
	case string:
		return NewScalar(String(t)), nil
	case json.Number:
		return NewScalar(ParseNumber(string(t))), nil
	case float64:
		return NewScalar(Float(t)), nil
	}
	return nil, fmt.Errorf("unsupported JSON token %T", tok)
}

// ParseNumber converts JSON number text into an Int when integral and in
// range, otherwise a Float.
func ParseNumber(s string) Value {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Float(math.NaN())
	}
	return Float(f)
}

// MarshalJSON implements json.Marshaler for Missing.
func (Missing) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON implements json.Marshaler for Scalar.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return MarshalResult(s)
}

// MarshalJSON implements json.Marshaler for Array.
func (a Array) MarshalJSON() ([]byte, error) {
	return MarshalResult(a)
}

// MarshalJSON implements json.Marshaler for Object, in insertion order.
func (o Object) MarshalJSON() ([]byte, error) {
	return MarshalResult(o)
}

// MarshalResult marshals a Result to JSON bytes.
// Dates and datetimes render as strings, durations as Go duration strings,
// binary as base64. Non-finite floats are rejected.
func MarshalResult(r Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeResult(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeResult(buf *bytes.Buffer, r Result) error {
	switch v := r.(type) {
	case nil, Missing:
		buf.WriteString("null")
	case Scalar:
		return writeValue(buf, v.Value)
	case Array:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeResult(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, f := range v.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(f.Name)
			if err != nil {
				return fmt.Errorf("marshal key %q: %w", f.Name, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeResult(buf, f.Value); err != nil {
				return fmt.Errorf("marshal value for key %q: %w", f.Name, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown Result type: %T", r)
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	var (
		out []byte
		err error
	)
	switch val := v.(type) {
	case Null:
		out = []byte("null")
	case Bool:
		out, err = json.Marshal(bool(val))
	case Int:
		out = strconv.AppendInt(nil, int64(val), 10)
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float %v cannot be encoded as JSON", f)
		}
		out, err = json.Marshal(f)
	case String:
		out, err = json.Marshal(string(val))
	case Date:
		out, err = json.Marshal(FormatDate(val))
	case DateTime:
		out, err = json.Marshal(FormatDateTime(val))
	case Duration:
		out, err = json.Marshal(time.Duration(val).String())
	case Binary:
		out, err = json.Marshal(base64.StdEncoding.EncodeToString(val))
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
	if err != nil {
		return err
	}
	buf.Write(out)
	return nil
}

// ToAny converts a Result to plain Go values (map[string]any, []any,
// int64, float64, string, bool, nil) for libraries that expect them.
func ToAny(r Result) any {
	switch v := r.(type) {
	case nil, Missing:
		return nil
	case Scalar:
		switch s := v.Value.(type) {
		case Null:
			return nil
		case Bool:
			return bool(s)
		case Int:
			return int64(s)
		case Float:
			return float64(s)
		case String:
			return string(s)
		case Date:
			return FormatDate(s)
		case DateTime:
			return FormatDateTime(s)
		case Duration:
			return time.Duration(s).String()
		case Binary:
			return base64.StdEncoding.EncodeToString(s)
		}
	case Array:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name] = ToAny(f.Value)
		}
		return out
	}
	return nil
}

// FromAny converts plain Go values (as produced by encoding/json, yaml.v3 or
// CUE decoding) into a Result. Map keys are sorted because Go maps carry
// no order.
func FromAny(v any) (Result, error) {
	switch val := v.(type) {
	case nil:
		return NewScalar(Null{}), nil
	case Result:
		return val, nil
	case bool:
		return NewScalar(Bool(val)), nil
	case string:
		return NewScalar(String(val)), nil
	case int:
		return NewScalar(Int(val)), nil
	case int64:
		return NewScalar(Int(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return NewScalar(Float(val)), nil
		}
		return NewScalar(Int(val)), nil
	case float64:
		return NewScalar(Float(val)), nil
	case json.Number:
		return NewScalar(ParseNumber(string(val))), nil
	case time.Time:
		return NewScalar(DateTime(val)), nil
	case []byte:
		return NewScalar(Binary(val)), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			r, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = r
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			r, err := FromAny(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			fields = append(fields, Field{Name: k, Value: r})
		}
		return NewObject(fields...), nil
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}
