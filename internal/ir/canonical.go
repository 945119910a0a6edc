package ir

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// CanonicalKey produces a deterministic byte encoding of r such that
// Equal(a, b) implies bytes.Equal(CanonicalKey(a), CanonicalKey(b)).
// It is the grouping and deduplication key for GroupBy, UniqueBy, IndexBy
// and unique().
//
// Key differences from MarshalResult:
//  1. Object keys sorted by UTF-16 code units, so field order is irrelevant
//  2. Strings are NFC normalized
//  3. Integral floats encode as ints, so 1 and 1.0 share a key
//  4. Non-JSON kinds carry a type prefix (d:, t:, p:, b:) so "2024-01-01"
//     and the date 2024-01-01 stay distinct
//  5. Missing and Null share the key "null"
func CanonicalKey(r Result) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, r)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, r Result) {
	switch v := r.(type) {
	case nil, Missing:
		buf.WriteString("null")
	case Scalar:
		writeCanonicalValue(buf, v.Value)
	case Array:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')
	case Object:
		fields := slices.Clone(v.Fields)
		slices.SortFunc(fields, func(a, b Field) int {
			return compareKeysRFC8785(a.Name, b.Name)
		})
		buf.WriteByte('{')
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, f.Name)
			buf.WriteByte(':')
			writeCanonical(buf, f.Value)
		}
		buf.WriteByte('}')
	}
}

func writeCanonicalValue(buf *bytes.Buffer, v Value) {
	switch val := v.(type) {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			buf.WriteString(strconv.FormatInt(int64(f), 10))
			return
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case String:
		writeCanonicalString(buf, string(val))
	case Date:
		buf.WriteString("d:")
		writeCanonicalString(buf, FormatDate(val))
	case DateTime:
		buf.WriteString("t:")
		writeCanonicalString(buf, val.Time().UTC().Format(time.RFC3339Nano))
	case Duration:
		buf.WriteString("p:")
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Binary:
		buf.WriteString("b:")
		writeCanonicalString(buf, base64.StdEncoding.EncodeToString(val))
	}
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(norm.NFC.String(s))
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
// Go's default string comparison uses UTF-8 which produces a different order.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
