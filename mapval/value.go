// Package mapval implements the MAP v1.1 canonical model: the six value
// types a descriptor is built from before encoding.
//
// Values are immutable once constructed. MAP entries are stored as an
// ordered slice rather than a Go map so that insertion order is preserved
// exactly as the caller supplied it; construction does not sort the
// entries itself (mcf.Encode validates that they already are sorted) —
// see the MCF encoder for why silent re-sorting would be the wrong
// behavior for a content-addressed identifier.
package mapval

import "fmt"

// Kind discriminates the six canonical types.
type Kind int

const (
	KindString Kind = iota
	KindBytes
	KindList
	KindMap
	KindBoolean
	KindInteger
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "STRING"
	case KindBytes:
		return "BYTES"
	case KindList:
		return "LIST"
	case KindMap:
		return "MAP"
	case KindBoolean:
		return "BOOLEAN"
	case KindInteger:
		return "INTEGER"
	default:
		return "UNKNOWN"
	}
}

// Entry is one key/value pair of a MAP. Key must be valid UTF-8 with no
// surrogate code points; the encoder is the sole enforcer of that and of
// sort order.
type Entry struct {
	Key   string
	Value *Value
}

// Value is a tagged union over the six MAP v1.1 canonical types. Use the
// constructor functions (String, Bytes, List, Map, Boolean, Integer)
// rather than building a Value literal directly, so the Kind and payload
// field can never disagree.
type Value struct {
	kind    Kind
	str     string
	bytes   []byte
	list    []*Value
	entries []Entry
	boolean bool
	integer int64
}

// Kind reports which of the six canonical types v holds.
func (v *Value) Kind() Kind { return v.kind }

// String constructs a STRING value.
func String(s string) *Value { return &Value{kind: KindString, str: s} }

// Bytes constructs a BYTES value. b is not copied; callers must not
// mutate it afterward.
func Bytes(b []byte) *Value { return &Value{kind: KindBytes, bytes: b} }

// List constructs a LIST value from items in order. items is not copied.
func List(items []*Value) *Value { return &Value{kind: KindList, list: items} }

// Map constructs a MAP value from entries in the order given. entries is
// not copied and is not sorted — callers are responsible for supplying
// entries already sorted by raw UTF-8 byte order; mcf.Encode rejects
// unsorted or duplicate keys rather than silently correcting them.
func Map(entries []Entry) *Value { return &Value{kind: KindMap, entries: entries} }

// Boolean constructs a BOOLEAN value.
func Boolean(b bool) *Value { return &Value{kind: KindBoolean, boolean: b} }

// Integer constructs an INTEGER value.
func Integer(i int64) *Value { return &Value{kind: KindInteger, integer: i} }

// StringValue returns the payload of a STRING value. Panics if Kind is
// not KindString — callers check Kind first, the same discipline the
// encoder and JSON adapter already follow.
func (v *Value) StringValue() string {
	v.mustBe(KindString)
	return v.str
}

// BytesValue returns the payload of a BYTES value.
func (v *Value) BytesValue() []byte {
	v.mustBe(KindBytes)
	return v.bytes
}

// ListValue returns the items of a LIST value.
func (v *Value) ListValue() []*Value {
	v.mustBe(KindList)
	return v.list
}

// MapValue returns the entries of a MAP value, in the order constructed.
func (v *Value) MapValue() []Entry {
	v.mustBe(KindMap)
	return v.entries
}

// BooleanValue returns the payload of a BOOLEAN value.
func (v *Value) BooleanValue() bool {
	v.mustBe(KindBoolean)
	return v.boolean
}

// IntegerValue returns the payload of an INTEGER value.
func (v *Value) IntegerValue() int64 {
	v.mustBe(KindInteger)
	return v.integer
}

func (v *Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("mapval: value is %s, not %s", v.kind, k))
	}
}

// String renders a short human-readable summary of v. Never used for
// hashing or encoding — debug/log output only.
func (v *Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.bytes))
	case KindList:
		return fmt.Sprintf("[%d items]", len(v.list))
	case KindMap:
		return fmt.Sprintf("{%d entries}", len(v.entries))
	case KindBoolean:
		return fmt.Sprintf("%t", v.boolean)
	case KindInteger:
		return fmt.Sprintf("%d", v.integer)
	default:
		return "<invalid>"
	}
}
