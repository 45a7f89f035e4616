// Package mcf implements the MAP v1.1 canonical binary format (MCF):
// a deterministic, self-describing encoding of mapval.Value trees, plus
// the validating decoder used by the fast path.
//
// Encoding per type:
//
//	STRING  : 0x01 || uint32be(byte_len) || utf8_bytes
//	BYTES   : 0x02 || uint32be(byte_len) || raw_bytes
//	LIST    : 0x03 || uint32be(count)    || value_1 || ... || value_n
//	MAP     : 0x04 || uint32be(count)    || (key_1 || val_1) || ...
//	BOOLEAN : 0x05 || payload_byte (0x01 true, 0x00 false)
//	INTEGER : 0x06 || int64be(value)
//
// Every value is self-describing via its tag; there is no schema
// negotiation and no implicit typing.
package mcf

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

// validateUTF8Scalar rejects invalid UTF-8 and lone surrogate code points.
// Go's utf8.ValidString already treats surrogate-encoding byte sequences
// as invalid, but we additionally decode rune-by-rune and check the
// scalar range explicitly, matching the reference implementation's
// defense-in-depth stance.
func validateUTF8Scalar(s string) error {
	if !utf8.ValidString(s) {
		return maperr.New(maperr.ErrUTF8, "invalid UTF-8")
	}
	for _, r := range s {
		if r == utf8.RuneError {
			return maperr.New(maperr.ErrUTF8, "invalid UTF-8")
		}
		if r >= 0xD800 && r <= 0xDFFF {
			return maperr.New(maperr.ErrUTF8, "surrogate code point")
		}
	}
	return nil
}

// keyOrderCheck compares two MAP keys by raw UTF-8 byte order (unsigned
// octet / memcmp semantics). Go's built-in string comparison already
// implements this — it is not Unicode code-point order, not locale
// collation, and not UTF-16 order.
func keyOrderCheck(prev, cur string) error {
	switch {
	case prev == cur:
		return maperr.New(maperr.ErrDupKey, "duplicate key")
	case prev > cur:
		return maperr.New(maperr.ErrKeyOrder, "key order violation")
	default:
		return nil
	}
}

// Encode serializes v into MCF bytes. depth is the nesting depth to
// start from; callers encoding a root value pass 0. Containers check
// depth+1 against maperr.MaxDepth before descending; scalars never
// increment depth.
func Encode(v *mapval.Value, depth int) ([]byte, error) {
	switch v.Kind() {
	case mapval.KindBoolean:
		payload := byte(0x00)
		if v.BooleanValue() {
			payload = 0x01
		}
		return []byte{maperr.TagBoolean, payload}, nil

	case mapval.KindInteger:
		buf := make([]byte, 9)
		buf[0] = maperr.TagInteger
		binary.BigEndian.PutUint64(buf[1:], uint64(v.IntegerValue()))
		return buf, nil

	case mapval.KindString:
		s := v.StringValue()
		if err := validateUTF8Scalar(s); err != nil {
			return nil, err
		}
		return encodeLenPrefixed(maperr.TagString, []byte(s)), nil

	case mapval.KindBytes:
		return encodeLenPrefixed(maperr.TagBytes, v.BytesValue()), nil

	case mapval.KindList:
		if depth+1 > maperr.MaxDepth {
			return nil, maperr.New(maperr.ErrLimitDepth, "depth exceeds MaxDepth")
		}
		items := v.ListValue()
		if len(items) > maperr.MaxListEntries {
			return nil, maperr.New(maperr.ErrLimitSize, "list entry count exceeds limit")
		}
		buf := make([]byte, 5)
		buf[0] = maperr.TagList
		binary.BigEndian.PutUint32(buf[1:], uint32(len(items)))
		for _, item := range items {
			enc, err := Encode(item, depth+1)
			if err != nil {
				return nil, err
			}
			buf = append(buf, enc...)
		}
		return buf, nil

	case mapval.KindMap:
		if depth+1 > maperr.MaxDepth {
			return nil, maperr.New(maperr.ErrLimitDepth, "depth exceeds MaxDepth")
		}
		entries := v.MapValue()
		if len(entries) > maperr.MaxMapEntries {
			return nil, maperr.New(maperr.ErrLimitSize, "map entry count exceeds limit")
		}

		for _, e := range entries {
			if err := validateUTF8Scalar(e.Key); err != nil {
				return nil, err
			}
		}
		for i := 1; i < len(entries); i++ {
			if err := keyOrderCheck(entries[i-1].Key, entries[i].Key); err != nil {
				return nil, err
			}
		}

		buf := make([]byte, 5)
		buf[0] = maperr.TagMap
		binary.BigEndian.PutUint32(buf[1:], uint32(len(entries)))
		for _, e := range entries {
			buf = append(buf, encodeLenPrefixed(maperr.TagString, []byte(e.Key))...)
			enc, err := Encode(e.Value, depth+1)
			if err != nil {
				return nil, err
			}
			buf = append(buf, enc...)
		}
		return buf, nil

	default:
		return nil, maperr.New(maperr.ErrCanonMCF, "unknown value kind")
	}
}

func encodeLenPrefixed(tag byte, raw []byte) []byte {
	buf := make([]byte, 5+len(raw))
	buf[0] = tag
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(raw)))
	copy(buf[5:], raw)
	return buf
}
