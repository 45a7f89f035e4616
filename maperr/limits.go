package maperr

// SpecVersion is the frozen MAP specification version this module
// implements.
const SpecVersion = "1.1"

// CanonHeader is the 5-byte canonical header prefixed to every MCF byte
// stream: ASCII "MAP1" followed by a NUL terminator. The "1" names the
// major version of the canonical framing, not SpecVersion; BOOLEAN and
// INTEGER support added in v1.1 did not change this prefix.
var CanonHeader = []byte("MAP1\x00")

// MCF type tags, one byte each. Tags 0x01-0x04 are unchanged since v1.0;
// 0x05-0x06 were added in v1.1 to resolve the boolean/string collision and
// to admit integers v1.0 rejected.
const (
	TagString  byte = 0x01
	TagBytes   byte = 0x02
	TagList    byte = 0x03
	TagMap     byte = 0x04
	TagBoolean byte = 0x05
	TagInteger byte = 0x06
)

// Normative safety limits. Implementations must enforce MaxCanonBytes
// before allocating buffers sized from attacker-controlled lengths.
const (
	// MaxCanonBytes is the maximum total canonical-bytes length (1 MiB).
	MaxCanonBytes = 1 << 20
	// MaxDepth is the maximum nesting depth of LIST/MAP containers.
	MaxDepth = 32
	// MaxMapEntries is the maximum number of entries in a single MAP.
	MaxMapEntries = 65535
	// MaxListEntries is the maximum number of entries in a single LIST.
	MaxListEntries = 65535
)
