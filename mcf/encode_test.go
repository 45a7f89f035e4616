package mcf

import (
	"bytes"
	"testing"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

func TestEncodeBooleanMapExactBytes(t *testing.T) {
	// {"v": true} as a MAP with one STRING-keyed BOOLEAN entry.
	v := mapval.Map([]mapval.Entry{{Key: "v", Value: mapval.Boolean(true)}})
	got, err := Encode(v, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{
		0x04, 0x00, 0x00, 0x00, 0x01, // MAP, 1 entry
		0x01, 0x00, 0x00, 0x00, 0x01, 0x76, // STRING key "v"
		0x05, 0x01, // BOOLEAN true
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeIntegerTwosComplement(t *testing.T) {
	v := mapval.Integer(-1)
	got, err := Encode(v, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x06, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = % x, want % x", got, want)
	}
}

func TestEncodeRejectsDuplicateKey(t *testing.T) {
	v := mapval.Map([]mapval.Entry{
		{Key: "a", Value: mapval.Integer(1)},
		{Key: "a", Value: mapval.Integer(2)},
	})
	_, err := Encode(v, 0)
	assertCode(t, err, maperr.ErrDupKey)
}

func TestEncodeRejectsOutOfOrderKeys(t *testing.T) {
	v := mapval.Map([]mapval.Entry{
		{Key: "b", Value: mapval.Integer(1)},
		{Key: "a", Value: mapval.Integer(2)},
	})
	_, err := Encode(v, 0)
	assertCode(t, err, maperr.ErrKeyOrder)
}

func TestEncodeKeyOrderIsUnsignedByteOrder(t *testing.T) {
	// "\x7F" (leading byte 0x7F) sorts before "\u0080" (leading byte
	// 0xC2) under unsigned raw-byte comparison, the same order a signed
	// byte comparison would get wrong since 0xC2 is negative as int8.
	v := mapval.Map([]mapval.Entry{
		{Key: "\x7F", Value: mapval.Integer(1)},
		{Key: "\u0080", Value: mapval.Integer(2)},
	})
	if _, err := Encode(v, 0); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestEncodeRejectsSurrogateString(t *testing.T) {
	// A lone surrogate can only be constructed directly in Go via an
	// invalid UTF-8 byte sequence, since Go source strings can't contain
	// one literally; build it from raw WTF-8-style bytes.
	v := mapval.String(string([]byte{0xED, 0xA0, 0x80})) // encoded U+D800
	_, err := Encode(v, 0)
	assertCode(t, err, maperr.ErrUTF8)
}

func TestEncodeDepthLimit(t *testing.T) {
	v := mapval.Boolean(true)
	for i := 0; i < maperr.MaxDepth; i++ {
		v = mapval.List([]*mapval.Value{v})
	}
	if _, err := Encode(v, 0); err != nil {
		t.Fatalf("Encode at max depth: %v", err)
	}

	v = mapval.List([]*mapval.Value{v})
	_, err := Encode(v, 0)
	assertCode(t, err, maperr.ErrLimitDepth)
}

func TestEncodeListEntryLimit(t *testing.T) {
	items := make([]*mapval.Value, maperr.MaxListEntries+1)
	for i := range items {
		items[i] = mapval.Integer(int64(i))
	}
	_, err := Encode(mapval.List(items), 0)
	assertCode(t, err, maperr.ErrLimitSize)
}

func assertCode(t *testing.T, err error, want maperr.Code) {
	t.Helper()
	me, ok := err.(*maperr.Error)
	if !ok || me == nil {
		t.Fatalf("error = %v, want *maperr.Error with code %s", err, want)
	}
	if me.Code != want {
		t.Fatalf("error code = %s, want %s", me.Code, want)
	}
}
