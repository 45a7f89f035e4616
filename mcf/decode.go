package mcf

import (
	"encoding/binary"

	"github.com/lattice-substrate/map1/maperr"
)

// DecodeValidate validates one MCF value in buf starting at off and
// returns the offset immediately past it. It performs full structural
// validation — UTF-8/scalar checks on every STRING, key uniqueness and
// ordering on every MAP, container limits, and boolean payload shape —
// without reconstructing a mapval.Value tree. This is the fast path used
// by mid.FromCanonicalBytes, which never needs the decoded value itself,
// only proof that buf is well-formed MCF.
//
// depth semantics mirror Encode: the root call starts at depth 0,
// entering a LIST or MAP checks depth+1 against maperr.MaxDepth, and
// scalars never increment depth.
func DecodeValidate(buf []byte, off int, depth int) (int, error) {
	if off >= len(buf) {
		return 0, maperr.New(maperr.ErrCanonMCF, "truncated tag")
	}
	tag := buf[off]
	off++

	switch tag {
	case maperr.TagString:
		n, next, err := readU32BE(buf, off)
		if err != nil {
			return 0, err
		}
		off = next
		if off+n > len(buf) {
			return 0, maperr.New(maperr.ErrCanonMCF, "truncated string payload")
		}
		if err := validateUTF8Scalar(string(buf[off : off+n])); err != nil {
			return 0, err
		}
		return off + n, nil

	case maperr.TagBytes:
		n, next, err := readU32BE(buf, off)
		if err != nil {
			return 0, err
		}
		off = next
		if off+n > len(buf) {
			return 0, maperr.New(maperr.ErrCanonMCF, "truncated bytes payload")
		}
		return off + n, nil

	case maperr.TagList:
		if depth+1 > maperr.MaxDepth {
			return 0, maperr.New(maperr.ErrLimitDepth, "depth exceeds MaxDepth")
		}
		count, next, err := readU32BE(buf, off)
		if err != nil {
			return 0, err
		}
		off = next
		if count > maperr.MaxListEntries {
			return 0, maperr.New(maperr.ErrLimitSize, "list entry count exceeds limit")
		}
		for i := 0; i < count; i++ {
			off, err = DecodeValidate(buf, off, depth+1)
			if err != nil {
				return 0, err
			}
		}
		return off, nil

	case maperr.TagMap:
		if depth+1 > maperr.MaxDepth {
			return 0, maperr.New(maperr.ErrLimitDepth, "depth exceeds MaxDepth")
		}
		count, next, err := readU32BE(buf, off)
		if err != nil {
			return 0, err
		}
		off = next
		if count > maperr.MaxMapEntries {
			return 0, maperr.New(maperr.ErrLimitSize, "map entry count exceeds limit")
		}

		var prevKey []byte
		for i := 0; i < count; i++ {
			if off >= len(buf) {
				return 0, maperr.New(maperr.ErrCanonMCF, "truncated map key tag")
			}
			if buf[off] != maperr.TagString {
				return 0, maperr.New(maperr.ErrSchema, "map key must be STRING")
			}
			keyLen, keyOff, err := readU32BE(buf, off+1)
			if err != nil {
				return 0, err
			}
			if keyOff+keyLen > len(buf) {
				return 0, maperr.New(maperr.ErrCanonMCF, "truncated string payload")
			}
			keyBytes := buf[keyOff : keyOff+keyLen]
			if err := validateUTF8Scalar(string(keyBytes)); err != nil {
				return 0, err
			}
			off = keyOff + keyLen

			if prevKey != nil {
				switch {
				case string(prevKey) == string(keyBytes):
					return 0, maperr.New(maperr.ErrDupKey, "duplicate key in MCF")
				case string(prevKey) > string(keyBytes):
					return 0, maperr.New(maperr.ErrKeyOrder, "key order violation in MCF")
				}
			}
			prevKey = append(prevKey[:0:0], keyBytes...)

			off, err = DecodeValidate(buf, off, depth+1)
			if err != nil {
				return 0, err
			}
		}
		return off, nil

	case maperr.TagBoolean:
		if off >= len(buf) {
			return 0, maperr.New(maperr.ErrCanonMCF, "truncated boolean payload")
		}
		payload := buf[off]
		if payload != 0x00 && payload != 0x01 {
			return 0, maperr.New(maperr.ErrCanonMCF, "invalid boolean payload")
		}
		return off + 1, nil

	case maperr.TagInteger:
		if off+8 > len(buf) {
			return 0, maperr.New(maperr.ErrCanonMCF, "truncated integer payload")
		}
		return off + 8, nil

	default:
		return 0, maperr.New(maperr.ErrCanonMCF, "unknown MCF tag")
	}
}

func readU32BE(buf []byte, off int) (int, int, error) {
	if off+4 > len(buf) {
		return 0, 0, maperr.New(maperr.ErrCanonMCF, "truncated u32")
	}
	return int(binary.BigEndian.Uint32(buf[off : off+4])), off + 4, nil
}
