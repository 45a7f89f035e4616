// Package mapjson implements the MAP v1.1 JSON-STRICT adapter: a strict,
// hand-rolled recursive-descent parser that converts raw UTF-8 JSON bytes
// into a mapval.Value tree.
//
// Type mapping:
//
//	JSON object  -> MAP
//	JSON array   -> LIST
//	JSON string  -> STRING
//	JSON boolean -> BOOLEAN
//	JSON integer -> INTEGER
//	JSON float   -> ERR_TYPE (a decimal point or exponent marker is rejected)
//	JSON null    -> ERR_TYPE
//
// Duplicate object keys are not rejected immediately: Parse records a
// dup-found flag and keeps going, because a higher-precedence error
// elsewhere in the document (ERR_TYPE from a null, ERR_UTF8 from a bad
// encoding) must still have a chance to surface. The caller raises
// ERR_DUP_KEY only if parsing otherwise succeeds and the flag is set.
package mapjson

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

// rawKind identifies the type of a just-tokenized JSON value, before
// conversion to the canonical model.
type rawKind int

const (
	rawNull rawKind = iota
	rawBool
	rawNumber
	rawString
	rawArray
	rawObject
)

// rawValue is the tokenizer's intermediate representation. Unlike the
// canonical model it preserves JSON nulls and every raw number token
// verbatim (so float-vs-integer classification happens on the literal
// source text, not on a pre-parsed float), and rawObject preserves every
// member pair including duplicates.
type rawValue struct {
	kind    rawKind
	boolean bool
	number  string // raw source token, e.g. "42", "3.14", "1e5"
	str     string // decoded string payload
	items   []rawValue
	pairs   []rawPair
}

type rawPair struct {
	key   string
	value rawValue
}

// maxParseDepth bounds recursion during tokenizing, well above
// maperr.MaxDepth so that documents nested deeper than the canonical
// limit still fail with ERR_LIMIT_DEPTH at conversion time rather than
// overflowing the Go call stack first.
const maxParseDepth = 10000

type parser struct {
	data  []byte
	pos   int
	depth int
}

// Parse parses raw JSON bytes under JSON-STRICT rules and converts the
// result to a mapval.Value. It returns the value, whether a duplicate
// object key was found anywhere in the document, and an error.
func Parse(raw []byte) (*mapval.Value, bool, error) {
	if len(raw) > maperr.MaxCanonBytes {
		return nil, false, maperr.New(maperr.ErrLimitSize, "input exceeds MaxCanonBytes")
	}

	if err := rejectBOM(raw); err != nil {
		return nil, false, err
	}

	if !utf8.Valid(raw) {
		return nil, false, maperr.New(maperr.ErrUTF8, "invalid UTF-8 in JSON input")
	}

	if err := scanForSurrogateEscapes(raw); err != nil {
		return nil, false, err
	}

	p := &parser{data: raw}
	p.skipWhitespace()
	rv, err := p.parseValue()
	if err != nil {
		return nil, false, err
	}
	p.skipWhitespace()
	if p.pos != len(p.data) {
		return nil, false, maperr.New(maperr.ErrCanonMCF, "trailing content after JSON value")
	}

	dupFound := false
	v, err := toCanonValue(rv, 1, &dupFound)
	if err != nil {
		return nil, false, err
	}
	return v, dupFound, nil
}

// rejectBOM rejects a leading UTF-8 BOM, checked after skipping JSON
// whitespace (space, tab, LF, CR).
func rejectBOM(raw []byte) error {
	i := 0
	for i < len(raw) && (raw[i] == 0x20 || raw[i] == 0x09 || raw[i] == 0x0A || raw[i] == 0x0D) {
		i++
	}
	if i < len(raw) && len(raw[i:]) >= 3 && raw[i] == 0xEF && raw[i+1] == 0xBB && raw[i+2] == 0xBF {
		return maperr.New(maperr.ErrSchema, "UTF-8 BOM rejected")
	}
	return nil
}

// scanForSurrogateEscapes independently pre-scans the raw bytes for
// \uD800-\uDFFF escape sequences inside string literals, regardless of
// whether the tokenizer's own escape handling would also catch them.
// This guarantees ERR_UTF8 is raised for this class of input before any
// other part of the tokenizer has a chance to report a different code.
func scanForSurrogateEscapes(raw []byte) error {
	inString := false
	i := 0
	for i < len(raw) {
		b := raw[i]
		if !inString {
			if b == '"' {
				inString = true
			}
			i++
			continue
		}
		if b == '\\' {
			i++
			if i >= len(raw) {
				break
			}
			if raw[i] == 'u' && i+5 <= len(raw) {
				if cp, err := strconv.ParseUint(string(raw[i+1:i+5]), 16, 16); err == nil {
					if cp >= 0xD800 && cp <= 0xDFFF {
						return maperr.New(maperr.ErrUTF8, "surrogate escape in JSON string")
					}
				}
				i += 5
				continue
			}
			i++
			continue
		}
		if b == '"' {
			inString = false
		}
		i++
	}
	return nil
}

func (p *parser) errorf(code maperr.Code, msg string) error {
	return maperr.NewAt(code, p.pos, msg)
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) pushDepth() error {
	p.depth++
	if p.depth > maxParseDepth {
		return p.errorf(maperr.ErrLimitDepth, "nesting depth exceeds internal limit")
	}
	return nil
}

func (p *parser) popDepth() { p.depth-- }

func (p *parser) parseValue() (rawValue, error) {
	c, ok := p.peek()
	if !ok {
		return rawValue{}, p.errorf(maperr.ErrCanonMCF, "unexpected end of input")
	}
	switch c {
	case '{':
		return p.parseObject()
	case '[':
		return p.parseArray()
	case '"':
		s, err := p.parseString()
		if err != nil {
			return rawValue{}, err
		}
		return rawValue{kind: rawString, str: s}, nil
	case 't', 'f':
		return p.parseBool()
	case 'n':
		return p.parseNull()
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseObject() (rawValue, error) {
	if err := p.pushDepth(); err != nil {
		return rawValue{}, err
	}
	defer p.popDepth()

	p.pos++ // consume '{'
	p.skipWhitespace()

	v := rawValue{kind: rawObject}
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return v, nil
	}

	for {
		p.skipWhitespace()
		if c, ok := p.peek(); !ok || c != '"' {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "expected string key in object")
		}
		key, err := p.parseString()
		if err != nil {
			return rawValue{}, err
		}
		p.skipWhitespace()
		if err := p.expect(':'); err != nil {
			return rawValue{}, err
		}
		p.skipWhitespace()
		val, err := p.parseValue()
		if err != nil {
			return rawValue{}, err
		}
		v.pairs = append(v.pairs, rawPair{key: key, value: val})

		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "unexpected end of input in object")
		}
		if c == '}' {
			p.pos++
			return v, nil
		}
		if c != ',' {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "expected ',' or '}' in object")
		}
		p.pos++
	}
}

func (p *parser) parseArray() (rawValue, error) {
	if err := p.pushDepth(); err != nil {
		return rawValue{}, err
	}
	defer p.popDepth()

	p.pos++ // consume '['
	p.skipWhitespace()

	v := rawValue{kind: rawArray}
	if c, ok := p.peek(); ok && c == ']' {
		p.pos++
		return v, nil
	}

	for {
		p.skipWhitespace()
		elem, err := p.parseValue()
		if err != nil {
			return rawValue{}, err
		}
		v.items = append(v.items, elem)

		p.skipWhitespace()
		c, ok := p.peek()
		if !ok {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "unexpected end of input in array")
		}
		if c == ']' {
			p.pos++
			return v, nil
		}
		if c != ',' {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "expected ',' or ']' in array")
		}
		p.pos++
	}
}

func (p *parser) expect(b byte) error {
	if p.pos >= len(p.data) || p.data[p.pos] != b {
		return p.errorf(maperr.ErrCanonMCF, "expected '"+string(b)+"'")
	}
	p.pos++
	return nil
}

func (p *parser) parseString() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var buf []byte
	for {
		if p.pos >= len(p.data) {
			return "", p.errorf(maperr.ErrCanonMCF, "unterminated string")
		}
		b := p.data[p.pos]
		switch {
		case b == '"':
			p.pos++
			return string(buf), nil
		case b == '\\':
			p.pos++
			r, err := p.parseEscape()
			if err != nil {
				return "", err
			}
			var tmp [4]byte
			n := utf8.EncodeRune(tmp[:], r)
			buf = append(buf, tmp[:n]...)
		case b < 0x20:
			return "", p.errorf(maperr.ErrCanonMCF, "unescaped control character in string")
		default:
			r, size := utf8.DecodeRune(p.data[p.pos:])
			if r == utf8.RuneError && size <= 1 {
				return "", p.errorf(maperr.ErrUTF8, "invalid UTF-8 byte in string")
			}
			buf = append(buf, p.data[p.pos:p.pos+size]...)
			p.pos += size
		}
	}
}

func (p *parser) parseEscape() (rune, error) {
	if p.pos >= len(p.data) {
		return 0, p.errorf(maperr.ErrCanonMCF, "unterminated escape sequence")
	}
	b := p.data[p.pos]
	p.pos++
	if b == 'u' {
		return p.parseUnicodeEscape()
	}
	switch b {
	case '"':
		return '"', nil
	case '\\':
		return '\\', nil
	case '/':
		return '/', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	default:
		return 0, p.errorf(maperr.ErrCanonMCF, "invalid escape character")
	}
}

func (p *parser) parseUnicodeEscape() (rune, error) {
	r1, err := p.readHex4()
	if err != nil {
		return 0, err
	}
	if !utf16.IsSurrogate(r1) {
		return r1, nil
	}
	// The independent pre-scan in scanForSurrogateEscapes already
	// rejects any \uD800-\uDFFF escape before we get here, so a lone or
	// mismatched surrogate pair is caught there with ERR_UTF8. If we do
	// reach this branch it means the pre-scan somehow missed a valid
	// pair (it never should); decode defensively rather than panic.
	if p.pos+1 >= len(p.data) || p.data[p.pos] != '\\' || p.data[p.pos+1] != 'u' {
		return 0, p.errorf(maperr.ErrUTF8, "lone surrogate escape")
	}
	p.pos += 2
	r2, err := p.readHex4()
	if err != nil {
		return 0, err
	}
	decoded := utf16.DecodeRune(r1, r2)
	if decoded == utf8.RuneError {
		return 0, p.errorf(maperr.ErrUTF8, "invalid surrogate pair")
	}
	return decoded, nil
}

func (p *parser) readHex4() (rune, error) {
	if p.pos+4 > len(p.data) {
		return 0, p.errorf(maperr.ErrCanonMCF, "incomplete \\u escape")
	}
	val, err := strconv.ParseUint(string(p.data[p.pos:p.pos+4]), 16, 16)
	if err != nil {
		return 0, p.errorf(maperr.ErrCanonMCF, "invalid hex in \\u escape")
	}
	p.pos += 4
	return rune(val), nil
}

func (p *parser) parseBool() (rawValue, error) {
	if p.pos+4 <= len(p.data) && string(p.data[p.pos:p.pos+4]) == "true" {
		p.pos += 4
		return rawValue{kind: rawBool, boolean: true}, nil
	}
	if p.pos+5 <= len(p.data) && string(p.data[p.pos:p.pos+5]) == "false" {
		p.pos += 5
		return rawValue{kind: rawBool, boolean: false}, nil
	}
	return rawValue{}, p.errorf(maperr.ErrCanonMCF, "invalid literal")
}

func (p *parser) parseNull() (rawValue, error) {
	if p.pos+4 <= len(p.data) && string(p.data[p.pos:p.pos+4]) == "null" {
		p.pos += 4
		return rawValue{kind: rawNull}, nil
	}
	return rawValue{}, p.errorf(maperr.ErrCanonMCF, "invalid literal")
}

// parseNumber captures the raw JSON number token verbatim, without
// parsing it to a float anywhere in this function. Classification of
// that token (integer vs rejected float) happens later in toCanonValue,
// per §8.2.1 of the value mapping.
func (p *parser) parseNumber() (rawValue, error) {
	start := p.pos
	if p.pos < len(p.data) && p.data[p.pos] == '-' {
		p.pos++
	}
	if p.pos >= len(p.data) || !isDigit(p.data[p.pos]) {
		return rawValue{}, p.errorf(maperr.ErrCanonMCF, "invalid number")
	}
	if p.data[p.pos] == '0' {
		p.pos++
	} else {
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.data) && p.data[p.pos] == '.' {
		p.pos++
		if p.pos >= len(p.data) || !isDigit(p.data[p.pos]) {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "expected digit after decimal point")
		}
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.data) && (p.data[p.pos] == 'e' || p.data[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.data) && (p.data[p.pos] == '+' || p.data[p.pos] == '-') {
			p.pos++
		}
		if p.pos >= len(p.data) || !isDigit(p.data[p.pos]) {
			return rawValue{}, p.errorf(maperr.ErrCanonMCF, "expected digit in exponent")
		}
		for p.pos < len(p.data) && isDigit(p.data[p.pos]) {
			p.pos++
		}
	}
	return rawValue{kind: rawNumber, number: string(p.data[start:p.pos])}, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ensureNoSurrogates is a defense-in-depth check: Go strings built from
// utf8.DecodeRune never contain an unpaired surrogate, but an explicit
// scalar-range check costs nothing and matches the reference
// implementation's own redundant check.
func ensureNoSurrogates(s string) error {
	for _, r := range s {
		if r >= 0xD800 && r <= 0xDFFF {
			return maperr.New(maperr.ErrUTF8, "surrogate code point in JSON string")
		}
	}
	return nil
}

// toCanonValue converts a rawValue tree into the canonical model. depth
// starts at 1 for the root value and increments only when descending
// into a nested MAP or LIST, never for scalars.
func toCanonValue(rv rawValue, depth int, dupFound *bool) (*mapval.Value, error) {
	if depth > maperr.MaxDepth {
		return nil, maperr.New(maperr.ErrLimitDepth, "exceeds MaxDepth")
	}

	switch rv.kind {
	case rawObject:
		seen := make(map[string]bool, len(rv.pairs))
		entries := make([]mapval.Entry, 0, len(rv.pairs))
		for _, pair := range rv.pairs {
			if err := ensureNoSurrogates(pair.key); err != nil {
				return nil, err
			}
			if seen[pair.key] {
				*dupFound = true
				continue // first occurrence wins
			}
			seen[pair.key] = true

			childDepth := depth
			if pair.value.kind == rawObject || pair.value.kind == rawArray {
				childDepth = depth + 1
			}
			child, err := toCanonValue(pair.value, childDepth, dupFound)
			if err != nil {
				return nil, err
			}
			entries = append(entries, mapval.Entry{Key: pair.key, Value: child})
		}
		if len(entries) > maperr.MaxMapEntries {
			return nil, maperr.New(maperr.ErrLimitSize, "map entry count exceeds limit")
		}
		sortEntriesByKey(entries)
		return mapval.Map(entries), nil

	case rawArray:
		items := make([]*mapval.Value, 0, len(rv.items))
		for _, item := range rv.items {
			childDepth := depth
			if item.kind == rawObject || item.kind == rawArray {
				childDepth = depth + 1
			}
			child, err := toCanonValue(item, childDepth, dupFound)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		if len(items) > maperr.MaxListEntries {
			return nil, maperr.New(maperr.ErrLimitSize, "list entry count exceeds limit")
		}
		return mapval.List(items), nil

	case rawString:
		if err := ensureNoSurrogates(rv.str); err != nil {
			return nil, err
		}
		return mapval.String(rv.str), nil

	case rawBool:
		return mapval.Boolean(rv.boolean), nil

	case rawNull:
		return nil, maperr.New(maperr.ErrType, "JSON null not allowed")

	case rawNumber:
		return canonNumber(rv.number)

	default:
		return nil, maperr.New(maperr.ErrCanonMCF, "unrecognized JSON token")
	}
}

// canonNumber classifies a raw JSON number token per §8.2.1: any token
// containing '.', 'e', or 'E' is a float and is rejected as ERR_TYPE,
// preventing silent coercion of e.g. "1.0" to the integer 1. Surviving
// tokens are parsed as base-10 integers and range-checked against int64.
func canonNumber(token string) (*mapval.Value, error) {
	if strings.ContainsAny(token, ".eE") {
		return nil, maperr.New(maperr.ErrType, "JSON float not allowed")
	}
	i, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, maperr.New(maperr.ErrType, "integer out of int64 range")
	}
	return mapval.Integer(i), nil
}

// sortEntriesByKey sorts MAP entries by raw UTF-8 byte order, the same
// unsigned-octet comparison mcf.Encode itself validates at encode time.
// Plain Go string comparison already implements this.
func sortEntriesByKey(entries []mapval.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}
