// Package mid computes CANON_BYTES and MIDs from canonical-model values
// or pre-serialized MCF, and implements the fast path over already-built
// canonical bytes.
//
//	CANON_BYTES = CanonHeader || MCF(root_value)
//	MID         = "map1:" || hex_lower(sha256(CANON_BYTES))
package mid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
	"github.com/lattice-substrate/map1/mcf"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashCanonicalBytes hashes already-validated CANON_BYTES directly,
// without re-running DecodeValidate. Callers that just produced canon
// via CanonicalBytes use this instead of FromCanonicalBytes to avoid
// paying for validation a second time.
func HashCanonicalBytes(canon []byte) string {
	return "map1:" + sha256Hex(canon)
}

// CanonicalBytes encodes v into CANON_BYTES: the 5-byte header followed
// by its MCF encoding, rejecting the result if it exceeds MaxCanonBytes.
func CanonicalBytes(v *mapval.Value) ([]byte, error) {
	body, err := mcf.Encode(v, 0)
	if err != nil {
		return nil, err
	}
	canon := make([]byte, 0, len(maperr.CanonHeader)+len(body))
	canon = append(canon, maperr.CanonHeader...)
	canon = append(canon, body...)
	if len(canon) > maperr.MaxCanonBytes {
		return nil, maperr.New(maperr.ErrLimitSize, "canon bytes exceed MaxCanonBytes")
	}
	return canon, nil
}

// FromValue computes the MID of v directly.
func FromValue(v *mapval.Value) (string, error) {
	canon, err := CanonicalBytes(v)
	if err != nil {
		return "", err
	}
	return "map1:" + sha256Hex(canon), nil
}

// FromCanonicalBytes validates pre-built CANON_BYTES and returns the
// corresponding MID. This is the fast path (spec §3.7): it fully
// validates the binary structure but hashes canon directly rather than
// re-encoding through the value model.
func FromCanonicalBytes(canon []byte) (string, error) {
	if len(canon) > maperr.MaxCanonBytes {
		return "", maperr.New(maperr.ErrLimitSize, "canon bytes exceed MaxCanonBytes")
	}
	if !hasPrefix(canon, maperr.CanonHeader) {
		return "", maperr.New(maperr.ErrCanonHdr, "bad canonical header")
	}

	off := len(maperr.CanonHeader)
	end, err := mcf.DecodeValidate(canon, off, 0)
	if err != nil {
		return "", err
	}
	if end != len(canon) {
		return "", maperr.New(maperr.ErrCanonMCF, "trailing bytes after MCF root")
	}

	return "map1:" + sha256Hex(canon), nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
