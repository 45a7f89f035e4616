// Package map1 computes deterministic content-addressed identifiers
// (MIDs) for structured descriptors using the MAP v1.1 canonical format.
//
//	descriptor := mapval.Map([]mapval.Entry{
//		{Key: "action", Value: mapval.String("deploy")},
//		{Key: "target", Value: mapval.String("prod")},
//		{Key: "version", Value: mapval.String("2.1.0")},
//	})
//	id, err := map1.MIDFull(descriptor)
//
// v1.1 adds BOOLEAN and INTEGER types, distinct from their string
// representations used in v1.0.
package map1

import (
	"github.com/lattice-substrate/map1/bind"
	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapjson"
	"github.com/lattice-substrate/map1/mapval"
	"github.com/lattice-substrate/map1/mid"
)

// SpecVersion is the frozen MAP specification version this module
// implements.
const SpecVersion = maperr.SpecVersion

// Re-exported error codes, for callers that want to switch on
// (*maperr.Error).Code without importing maperr directly.
const (
	ErrCanonHdr   = maperr.ErrCanonHdr
	ErrCanonMCF   = maperr.ErrCanonMCF
	ErrSchema     = maperr.ErrSchema
	ErrType       = maperr.ErrType
	ErrUTF8       = maperr.ErrUTF8
	ErrDupKey     = maperr.ErrDupKey
	ErrKeyOrder   = maperr.ErrKeyOrder
	ErrLimitDepth = maperr.ErrLimitDepth
	ErrLimitSize  = maperr.ErrLimitSize
)

// MIDFull computes a MID over the full descriptor (FULL projection).
// descriptor's MAP entries, at every level, must already be sorted by
// raw UTF-8 byte order; MIDFull does not sort them, it validates that
// they are sorted.
func MIDFull(descriptor *mapval.Value) (string, error) {
	return mid.FromValue(bind.Full(descriptor))
}

// MIDBind computes a MID over selected fields of descriptor (BIND
// projection). pointers are RFC 6901 JSON Pointer strings, e.g.
// "/action" or "/config/port".
func MIDBind(descriptor *mapval.Value, pointers []string) (string, error) {
	projected, err := bind.Project(descriptor, pointers)
	if err != nil {
		return "", err
	}
	return mid.FromValue(projected)
}

// CanonicalBytesFull returns CANON_BYTES (header + MCF) for the full
// descriptor.
func CanonicalBytesFull(descriptor *mapval.Value) ([]byte, error) {
	return mid.CanonicalBytes(bind.Full(descriptor))
}

// CanonicalBytesBind returns CANON_BYTES for selected fields of
// descriptor (BIND projection).
func CanonicalBytesBind(descriptor *mapval.Value, pointers []string) ([]byte, error) {
	projected, err := bind.Project(descriptor, pointers)
	if err != nil {
		return nil, err
	}
	return mid.CanonicalBytes(projected)
}

// MIDFullJSON computes a MID from raw UTF-8 JSON bytes under
// JSON-STRICT + FULL. If pointers is non-empty, BIND is applied instead
// of FULL.
func MIDFullJSON(raw []byte, pointers ...string) (string, error) {
	val, dupFound, err := mapjson.Parse(raw)
	if err != nil {
		return "", err
	}

	projected := bind.Full(val)
	if len(pointers) > 0 {
		projected, err = bind.Project(val, pointers)
		if err != nil {
			return "", err
		}
	}

	canon, err := mid.CanonicalBytes(projected)
	if err != nil {
		return "", err
	}

	// Raise ERR_DUP_KEY only now that every higher-precedence error
	// (type, UTF-8, schema — all checked above during parsing,
	// projection, and encoding) has had its chance to surface first. A
	// depth or size limit error found in those steps is also returned
	// before the duplicate flag is consulted.
	if dupFound {
		return "", maperr.New(maperr.ErrDupKey, "duplicate key in JSON")
	}

	return mid.HashCanonicalBytes(canon), nil
}

// MIDFromCanonicalBytes validates pre-built CANON_BYTES and returns the
// corresponding MID: the fast path over already-serialized canonical
// bytes, used when a caller has CANON_BYTES from another source and
// wants to avoid re-encoding through the value model.
func MIDFromCanonicalBytes(raw []byte) (string, error) {
	return mid.FromCanonicalBytes(raw)
}
