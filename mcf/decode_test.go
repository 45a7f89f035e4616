package mcf

import (
	"testing"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

func TestDecodeValidateRoundTrip(t *testing.T) {
	v := mapval.Map([]mapval.Entry{
		{Key: "a", Value: mapval.Integer(1)},
		{Key: "b", Value: mapval.List([]*mapval.Value{mapval.Boolean(true), mapval.Bytes([]byte{1, 2, 3})})},
	})
	enc, err := Encode(v, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	end, err := DecodeValidate(enc, 0, 0)
	if err != nil {
		t.Fatalf("DecodeValidate: %v", err)
	}
	if end != len(enc) {
		t.Fatalf("end = %d, want %d", end, len(enc))
	}
}

func TestDecodeValidateLeavesTrailingBytesUnconsumed(t *testing.T) {
	v := mapval.Boolean(true)
	enc, err := Encode(v, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc = append(enc, 0x00)
	end, err := DecodeValidate(enc, 0, 0)
	if err != nil {
		t.Fatalf("DecodeValidate: %v", err)
	}
	if end == len(enc) {
		t.Fatalf("expected trailing byte to not be consumed")
	}
}

func TestDecodeValidateRejectsBadBooleanPayload(t *testing.T) {
	buf := []byte{maperr.TagBoolean, 0x02}
	_, err := DecodeValidate(buf, 0, 0)
	assertCode(t, err, maperr.ErrCanonMCF)
}

func TestDecodeValidateRejectsUnknownTag(t *testing.T) {
	buf := []byte{0xFF}
	_, err := DecodeValidate(buf, 0, 0)
	assertCode(t, err, maperr.ErrCanonMCF)
}

func TestDecodeValidateRejectsDuplicateKey(t *testing.T) {
	// MAP with two identical STRING keys "a", each mapping to INTEGER 1.
	buf := []byte{
		maperr.TagMap, 0x00, 0x00, 0x00, 0x02,
		maperr.TagString, 0x00, 0x00, 0x00, 0x01, 'a',
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 1,
		maperr.TagString, 0x00, 0x00, 0x00, 0x01, 'a',
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 2,
	}
	_, err := DecodeValidate(buf, 0, 0)
	assertCode(t, err, maperr.ErrDupKey)
}

func TestDecodeValidateRejectsOutOfOrderKeys(t *testing.T) {
	buf := []byte{
		maperr.TagMap, 0x00, 0x00, 0x00, 0x02,
		maperr.TagString, 0x00, 0x00, 0x00, 0x01, 'b',
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 1,
		maperr.TagString, 0x00, 0x00, 0x00, 0x01, 'a',
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 2,
	}
	_, err := DecodeValidate(buf, 0, 0)
	assertCode(t, err, maperr.ErrKeyOrder)
}

func TestDecodeValidateRejectsNonStringMapKey(t *testing.T) {
	buf := []byte{
		maperr.TagMap, 0x00, 0x00, 0x00, 0x01,
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 1,
		maperr.TagInteger, 0, 0, 0, 0, 0, 0, 0, 2,
	}
	_, err := DecodeValidate(buf, 0, 0)
	assertCode(t, err, maperr.ErrSchema)
}

func TestDecodeValidateTruncatedTag(t *testing.T) {
	_, err := DecodeValidate(nil, 0, 0)
	assertCode(t, err, maperr.ErrCanonMCF)
}
