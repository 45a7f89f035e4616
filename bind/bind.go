// Package bind implements the MAP v1.1 BIND projection: selecting
// specific descriptor fields by RFC 6901 JSON Pointer and producing the
// minimal enclosing MAP subtree that contains exactly those fields.
//
// The rules below are numbered the same way the reference implementation
// cites them, so a reviewer can trace a branch back to its normative
// clause:
//
//	(a) parse every pointer per RFC 6901
//	(b) reject duplicate pointer strings
//	(c) unmatched-pointer handling: fail-closed unless every pointer is
//	    unmatched, in which case the result is an empty MAP
//	(d) subsumption — a pointer that is a strict prefix of another makes
//	    the longer one redundant
//	(e) the empty pointer "" always matches and selects the whole
//	    descriptor
//	(1) sibling keys not on a selected path are omitted at every level
//	(2) the output is the minimal enclosing structure for the selection
//	(3) no match at all is not an error — it yields an empty MAP
//	(4) LIST traversal is forbidden anywhere in a pointer's path
package bind

import (
	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapval"
)

// parsePointer splits a JSON Pointer into its decoded reference tokens.
// Tilde escapes are resolved character-by-character, left to right
// ("~0" -> "~", "~1" -> "/"), so that a token like "~01" decodes to "~1"
// rather than being misread if "~1" were substituted first.
func parsePointer(ptr string) ([]string, error) {
	if ptr == "" {
		return nil, nil // whole-document pointer, rule (e)
	}
	if ptr[0] != '/' {
		return nil, maperr.New(maperr.ErrSchema, "pointer must start with '/'")
	}

	var tokens []string
	for _, raw := range splitSlash(ptr[1:]) {
		runes := []rune(raw)
		var decoded []rune
		i := 0
		for i < len(runes) {
			if runes[i] != '~' {
				decoded = append(decoded, runes[i])
				i++
				continue
			}
			if i+1 >= len(runes) {
				return nil, maperr.New(maperr.ErrSchema, "dangling ~ in pointer")
			}
			switch runes[i+1] {
			case '0':
				decoded = append(decoded, '~')
			case '1':
				decoded = append(decoded, '/')
			default:
				return nil, maperr.New(maperr.ErrSchema, "bad ~ escape in pointer")
			}
			i += 2
		}
		tokens = append(tokens, string(decoded))
	}
	return tokens, nil
}

func splitSlash(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Full is the FULL projection: the identity function on the descriptor.
func Full(descriptor *mapval.Value) *mapval.Value {
	return descriptor
}

// Project is the BIND projection: select fields by JSON Pointer path and
// return the minimal enclosing MAP containing exactly the selected
// fields.
func Project(descriptor *mapval.Value, pointers []string) (*mapval.Value, error) {
	if descriptor.Kind() != mapval.KindMap {
		return nil, maperr.New(maperr.ErrSchema, "BIND root must be a MAP")
	}
	rootEntries := descriptor.MapValue()

	// Rule (b): no duplicate pointer strings.
	seen := make(map[string]bool, len(pointers))
	for _, ptr := range pointers {
		if seen[ptr] {
			return nil, maperr.New(maperr.ErrSchema, "duplicate pointers")
		}
		seen[ptr] = true
	}

	// Rule (a): parse every pointer up front.
	type parsedPointer struct {
		raw    string
		tokens []string
	}
	parsed := make([]parsedPointer, 0, len(pointers))
	for _, ptr := range pointers {
		tokens, err := parsePointer(ptr)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, parsedPointer{raw: ptr, tokens: tokens})
	}

	var matchedPaths [][]string
	anyMatch, anyUnmatched, anyEmpty := false, false, false

	for _, pp := range parsed {
		if pp.raw == "" {
			anyMatch = true
			anyEmpty = true
			continue
		}

		cur := descriptor
		ok := true
		for _, tok := range pp.tokens {
			switch cur.Kind() {
			case mapval.KindList:
				// Rule (4): LIST traversal is forbidden, checked even
				// before we know whether this pointer would otherwise
				// match or not.
				return nil, maperr.New(maperr.ErrSchema, "BIND cannot traverse LIST")
			case mapval.KindMap:
				next, found := lookup(cur.MapValue(), tok)
				if !found {
					ok = false
				} else {
					cur = next
				}
			default:
				ok = false
			}
			if !ok {
				break
			}
		}

		if ok {
			anyMatch = true
			matchedPaths = append(matchedPaths, pp.tokens)
		} else {
			anyUnmatched = true
		}
	}

	// Rule (c)/(3): no pointer matched at all -> empty MAP, not an error.
	if !anyMatch {
		return mapval.Map(nil), nil
	}
	// Rule (c): mixed match/non-match across the pointer set fails closed.
	if anyUnmatched {
		return nil, maperr.New(maperr.ErrSchema, "unmatched pointer in set")
	}
	// Rule (e): any empty pointer in the set selects the whole descriptor.
	if anyEmpty {
		return descriptor, nil
	}

	// Rule (d): discard subsumed pointers (a prefix path makes a longer
	// path redundant).
	effective := make([][]string, 0, len(matchedPaths))
	for _, path := range matchedPaths {
		subsumed := false
		for _, other := range matchedPaths {
			if len(other) < len(path) && prefixEqual(path, other) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			effective = append(effective, path)
		}
	}

	return buildProjected(rootEntries, effective)
}

func lookup(entries []mapval.Entry, key string) (*mapval.Value, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func prefixEqual(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

// buildProjected assembles the minimal enclosing MAP for paths, grouped
// by first token at this level, recursing for every group that has
// sub-paths remaining.
func buildProjected(rootEntries []mapval.Entry, paths [][]string) (*mapval.Value, error) {
	type group struct {
		key      string
		subPaths [][]string
	}
	var groups []group
	groupIdx := make(map[string]int)

	for _, path := range paths {
		if len(path) == 0 {
			continue // empty pointers are resolved before this point
		}
		first, rest := path[0], path[1:]
		if idx, ok := groupIdx[first]; ok {
			groups[idx].subPaths = append(groups[idx].subPaths, rest)
		} else {
			groupIdx[first] = len(groups)
			groups = append(groups, group{key: first, subPaths: [][]string{rest}})
		}
	}

	result := make([]mapval.Entry, 0, len(groups))
	for _, g := range groups {
		val, found := lookup(rootEntries, g.key)
		if !found {
			// The key existed during matching but vanished during the
			// build pass: the two passes walk the same tree, so this
			// indicates an internal inconsistency rather than a normal
			// validation failure.
			return nil, maperr.New(maperr.ErrSchema, "BIND path key not found")
		}

		leafSelected := false
		for _, sp := range g.subPaths {
			if len(sp) == 0 {
				leafSelected = true
				break
			}
		}

		if leafSelected {
			result = append(result, mapval.Entry{Key: g.key, Value: val})
			continue
		}

		switch val.Kind() {
		case mapval.KindList:
			return nil, maperr.New(maperr.ErrSchema, "BIND cannot traverse LIST")
		case mapval.KindMap:
			projected, err := buildProjected(val.MapValue(), g.subPaths)
			if err != nil {
				return nil, err
			}
			result = append(result, mapval.Entry{Key: g.key, Value: projected})
		default:
			return nil, maperr.New(maperr.ErrSchema, "cannot traverse non-MAP")
		}
	}

	sortEntries(result)
	return mapval.Map(result), nil
}

func sortEntries(entries []mapval.Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Key > entries[j].Key; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}
