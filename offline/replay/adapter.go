package replay

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lattice-substrate/map1"
	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapjson"
)

// vectorCase mirrors the JSONL conformance vector schema used by
// conformance/harness_test.go: a CLI invocation and its expected
// outcome. want_mid is checked when want_exit is 0; want_code is
// checked (against the maperr taxonomy code) when want_exit is
// non-zero.
type vectorCase struct {
	ID       string   `json:"id"`
	Args     []string `json:"args"`
	Input    string   `json:"input"`
	WantExit int      `json:"want_exit"`
	WantMID  string   `json:"want_mid,omitempty"`
	WantCode string   `json:"want_code,omitempty"`
}

func loadVectorCases(path string) ([]vectorCase, error) {
	// #nosec G304 -- vector path is derived from the lane matrix's own vector_set field.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cases []vectorCase
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var tc vectorCase
		if err := json.Unmarshal([]byte(line), &tc); err != nil {
			return nil, fmt.Errorf("decode vector line: %w", err)
		}
		cases = append(cases, tc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan vector file: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("vector file %s has no cases", path)
	}
	return cases, nil
}

// bindPointersFromArgs extracts the RFC 6901 pointers that follow each
// --bind flag in a vector's recorded CLI args, in order.
func bindPointersFromArgs(args []string) []string {
	var pointers []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--bind" && i+1 < len(args) {
			pointers = append(pointers, args[i+1])
			i++
		}
	}
	return pointers
}

// InProcessAdapter is the real LaneAdapter: it drives the three map1
// public entry points directly, in process, against a fixed JSONL
// vector set under VectorsDir, instead of shelling out to a VM,
// container, or even a subprocess. Prepare and Cleanup are no-ops
// because there is no external session to stand up; RunReplay checks
// every vector case's actual outcome against its recorded expectation,
// so a regression in any of the three entry points fails the replay
// instead of producing evidence that only looks like it passed.
type InProcessAdapter struct {
	VectorsDir string
}

// Prepare is a no-op: the in-process lanes need no session setup.
func (InProcessAdapter) Prepare(_ context.Context, _ LaneSpec, _ string, _ int) error {
	return nil
}

// Cleanup is a no-op: the in-process lanes leave nothing to tear down.
func (InProcessAdapter) Cleanup(_ context.Context, _ LaneSpec, _ int) error {
	return nil
}

// RunReplay loads lane.VectorSet from VectorsDir, replays every case
// through the map1 entry point for lane.Kind, and writes the resulting
// LaneRunEvidence to evidencePath. It returns an error naming the
// failing case on the first mismatch between a case's actual and
// expected outcome.
func (a InProcessAdapter) RunReplay(_ context.Context, lane LaneSpec, _ string, evidencePath string, replayIndex int) error {
	vectorPath := filepath.Join(a.VectorsDir, lane.VectorSet+".jsonl")
	cases, err := loadVectorCases(vectorPath)
	if err != nil {
		return fmt.Errorf("lane %s: %w", lane.ID, err)
	}

	started := wallClockNow().UTC()
	canonTokens := make([]string, 0, len(cases))
	midTokens := make([]string, 0, len(cases))

	for _, tc := range cases {
		gotExit, gotMID, gotCode, runErr := runCase(lane.Kind, tc)
		if runErr != nil {
			return fmt.Errorf("lane %s case %s: %w", lane.ID, tc.ID, runErr)
		}
		if gotExit != tc.WantExit {
			return fmt.Errorf("lane %s case %s: exit = %d, want %d", lane.ID, tc.ID, gotExit, tc.WantExit)
		}
		if tc.WantMID != "" && gotMID != tc.WantMID {
			return fmt.Errorf("lane %s case %s: mid = %q, want %q", lane.ID, tc.ID, gotMID, tc.WantMID)
		}
		if tc.WantCode != "" && gotCode != tc.WantCode {
			return fmt.Errorf("lane %s case %s: code = %q, want %q", lane.ID, tc.ID, gotCode, tc.WantCode)
		}
		canonTokens = append(canonTokens, fmt.Sprintf("%s|%d|%s|%s", tc.ID, gotExit, gotMID, gotCode))
		if gotMID != "" {
			midTokens = append(midTokens, gotMID)
		}
	}
	completed := wallClockNow().UTC()

	run := LaneRunEvidence{
		LaneID:          lane.ID,
		Kind:            string(lane.Kind),
		VectorSet:       lane.VectorSet,
		ReplayIndex:     replayIndex,
		SessionID:       fmt.Sprintf("%s-replay-%03d", lane.ID, replayIndex),
		StartedAtUTC:    started.Format(time.RFC3339Nano),
		CompletedAtUTC:  completed.Format(time.RFC3339Nano),
		CaseCount:       len(cases),
		Passed:          true,
		CanonicalSHA256: digestTokens(canonTokens),
		MIDSetSHA256:    digestTokens(midTokens),
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal lane %s evidence: %w", lane.ID, err)
	}
	return os.WriteFile(evidencePath, data, 0o600)
}

// runCase dispatches one vector case to the real map1 entry point for
// kind and reports its actual exit code, MID (on success), and error
// code (on failure, empty otherwise).
func runCase(kind LaneKind, tc vectorCase) (exit int, id string, code string, err error) {
	pointers := bindPointersFromArgs(tc.Args)
	raw := []byte(tc.Input)

	var opErr error
	switch kind {
	case LaneValuePath:
		val, dupFound, parseErr := mapjson.Parse(raw)
		if parseErr != nil {
			opErr = parseErr
			break
		}
		if len(pointers) > 0 {
			id, opErr = map1.MIDBind(val, pointers)
		} else {
			id, opErr = map1.MIDFull(val)
		}
		if opErr == nil && dupFound {
			opErr = maperr.New(maperr.ErrDupKey, "duplicate key in JSON")
		}
	case LaneJSONPath:
		id, opErr = map1.MIDFullJSON(raw, pointers...)
	case LaneFastPath:
		id, opErr = map1.MIDFromCanonicalBytes(raw)
	default:
		return 0, "", "", fmt.Errorf("unsupported lane kind %q", kind)
	}

	if opErr == nil {
		return 0, id, "", nil
	}
	me, ok := opErr.(*maperr.Error)
	if !ok {
		return 0, "", "", opErr
	}
	return me.ExitCode(), "", string(me.Code), nil
}

func digestTokens(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}
