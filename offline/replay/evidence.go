package replay

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

const EvidenceSchemaVersion = "evidence.v1"

// EvidenceBundle is the machine-consumed replay output artifact.
type EvidenceBundle struct {
	SchemaVersion      string            `json:"schema_version"`
	BundleSHA256       string            `json:"bundle_sha256"`
	ControlBinarySHA   string            `json:"control_binary_sha256"`
	MatrixSHA256       string            `json:"matrix_sha256"`
	ProfileSHA256      string            `json:"profile_sha256"`
	GeneratedAtUTC     string            `json:"generated_at_utc"`
	Orchestrator       string            `json:"orchestrator"`
	ProfileName        string            `json:"profile_name"`
	RequiredVectorSets []string          `json:"required_vector_sets"`
	HardReleaseGate    bool              `json:"hard_release_gate"`
	LaneReplays        []LaneRunEvidence `json:"lane_replays"`
	AggregateCanonical string            `json:"aggregate_canonical_sha256"`
	AggregateMIDSet    string            `json:"aggregate_mid_set_sha256"`
}

// LaneRunEvidence is one replay execution on one lane.
type LaneRunEvidence struct {
	LaneID          string `json:"lane_id"`
	Kind            string `json:"kind"`
	VectorSet       string `json:"vector_set"`
	ReplayIndex     int    `json:"replay_index"`
	SessionID       string `json:"session_id"`
	StartedAtUTC    string `json:"started_at_utc"`
	CompletedAtUTC  string `json:"completed_at_utc"`
	CaseCount       int    `json:"case_count"`
	Passed          bool   `json:"passed"`
	CanonicalSHA256 string `json:"canonical_sha256"`
	MIDSetSHA256    string `json:"mid_set_sha256"`
}

// EvidenceValidationOptions binds evidence metadata to expected immutable inputs.
type EvidenceValidationOptions struct {
	ExpectedBundleSHA256        string
	ExpectedControlBinarySHA256 string
	ExpectedMatrixSHA256        string
	ExpectedProfileSHA256       string
}

func WriteEvidence(path string, e *EvidenceBundle) error {
	if e == nil {
		return fmt.Errorf("evidence bundle is nil")
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write evidence file: %w", err)
	}
	return nil
}

func LoadEvidence(path string) (*EvidenceBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	var e EvidenceBundle
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	return &e, nil
}

// ValidateEvidenceBundle checks that replay evidence proves two things:
// each required lane replayed at least MinReplays times with a stable
// digest, and every lane sharing the same vector_set agrees with every
// other lane on that digest (cross-entry-point determinism).
//
//nolint:gocyclo,cyclop,funlen // evidence validation is explicit to keep release-gate failures actionable.
func ValidateEvidenceBundle(e *EvidenceBundle, m *LaneMatrix, p *ReplayProfile, opts EvidenceValidationOptions) error {
	if e == nil {
		return fmt.Errorf("evidence bundle is nil")
	}
	if m == nil || p == nil {
		return fmt.Errorf("lane matrix and replay profile are required")
	}
	if e.SchemaVersion != EvidenceSchemaVersion {
		return fmt.Errorf("unsupported schema_version %q", e.SchemaVersion)
	}
	if e.ProfileName != p.Name {
		return fmt.Errorf("profile mismatch: evidence=%q profile=%q", e.ProfileName, p.Name)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{name: "bundle_sha256", value: e.BundleSHA256},
		{name: "control_binary_sha256", value: e.ControlBinarySHA},
		{name: "matrix_sha256", value: e.MatrixSHA256},
		{name: "profile_sha256", value: e.ProfileSHA256},
	} {
		if err := validateSHA256Token(field.name, field.value); err != nil {
			return err
		}
	}
	if opts.ExpectedBundleSHA256 != "" && e.BundleSHA256 != opts.ExpectedBundleSHA256 {
		return fmt.Errorf("bundle_sha256 mismatch: evidence=%q expected=%q", e.BundleSHA256, opts.ExpectedBundleSHA256)
	}
	if opts.ExpectedControlBinarySHA256 != "" && e.ControlBinarySHA != opts.ExpectedControlBinarySHA256 {
		return fmt.Errorf("control_binary_sha256 mismatch: evidence=%q expected=%q", e.ControlBinarySHA, opts.ExpectedControlBinarySHA256)
	}
	if opts.ExpectedMatrixSHA256 != "" && e.MatrixSHA256 != opts.ExpectedMatrixSHA256 {
		return fmt.Errorf("matrix_sha256 mismatch: evidence=%q expected=%q", e.MatrixSHA256, opts.ExpectedMatrixSHA256)
	}
	if opts.ExpectedProfileSHA256 != "" && e.ProfileSHA256 != opts.ExpectedProfileSHA256 {
		return fmt.Errorf("profile_sha256 mismatch: evidence=%q expected=%q", e.ProfileSHA256, opts.ExpectedProfileSHA256)
	}
	if !e.HardReleaseGate {
		return fmt.Errorf("evidence must record hard_release_gate=true")
	}
	if len(e.LaneReplays) == 0 {
		return fmt.Errorf("evidence must include lane_replays")
	}

	requiredLanes, err := requiredLaneIDs(m, p)
	if err != nil {
		return err
	}
	matrixByID := make(map[string]LaneSpec, len(m.Lanes))
	for _, lane := range m.Lanes {
		matrixByID[lane.ID] = lane
	}

	byLane := make(map[string][]LaneRunEvidence)
	byVectorSet := make(map[string][]LaneRunEvidence)
	for _, r := range e.LaneReplays {
		if r.LaneID == "" {
			return fmt.Errorf("lane replay has empty lane_id")
		}
		lane, ok := matrixByID[r.LaneID]
		if !ok {
			return fmt.Errorf("lane replay references unknown lane_id %q", r.LaneID)
		}
		if r.Kind != string(lane.Kind) {
			return fmt.Errorf("lane %s kind mismatch: got=%q want=%q", r.LaneID, r.Kind, lane.Kind)
		}
		if r.VectorSet != lane.VectorSet {
			return fmt.Errorf("lane %s vector_set mismatch: got=%q want=%q", r.LaneID, r.VectorSet, lane.VectorSet)
		}
		if r.ReplayIndex < 1 {
			return fmt.Errorf("lane %s replay_index must be >=1", r.LaneID)
		}
		if r.CaseCount < 1 {
			return fmt.Errorf("lane %s replay %d must have case_count >=1", r.LaneID, r.ReplayIndex)
		}
		if !r.Passed {
			return fmt.Errorf("lane %s replay %d is marked failed", r.LaneID, r.ReplayIndex)
		}
		for _, token := range []struct {
			name  string
			value string
		}{
			{"session_id", r.SessionID},
			{"started_at_utc", r.StartedAtUTC},
			{"completed_at_utc", r.CompletedAtUTC},
			{"canonical_sha256", r.CanonicalSHA256},
			{"mid_set_sha256", r.MIDSetSHA256},
		} {
			if strings.TrimSpace(token.value) == "" {
				return fmt.Errorf("lane %s replay %d missing %s", r.LaneID, r.ReplayIndex, token.name)
			}
		}
		byLane[r.LaneID] = append(byLane[r.LaneID], r)
		byVectorSet[r.VectorSet] = append(byVectorSet[r.VectorSet], r)
	}

	var baseline *LaneRunEvidence
	for _, id := range requiredLanes {
		runs := byLane[id]
		wantReplays := requiredReplayCount(matrixByID[id], p)
		if len(runs) < wantReplays {
			return fmt.Errorf("lane %s has %d replays, want at least %d", id, len(runs), wantReplays)
		}
		seenReplay := make(map[int]struct{}, len(runs))
		for _, run := range runs {
			seenReplay[run.ReplayIndex] = struct{}{}
			if baseline == nil {
				r := run
				baseline = &r
				continue
			}
			if run.CanonicalSHA256 != runs[0].CanonicalSHA256 {
				return fmt.Errorf("canonical digest drift at lane %s replay %d", run.LaneID, run.ReplayIndex)
			}
			if run.MIDSetSHA256 != runs[0].MIDSetSHA256 {
				return fmt.Errorf("mid-set digest drift at lane %s replay %d", run.LaneID, run.ReplayIndex)
			}
		}
		for i := 1; i <= wantReplays; i++ {
			if _, ok := seenReplay[i]; !ok {
				return fmt.Errorf("lane %s missing replay index %d", id, i)
			}
		}
	}
	if baseline == nil {
		return fmt.Errorf("no baseline replay digest found")
	}

	for vectorSet, runs := range byVectorSet {
		for _, run := range runs[1:] {
			if run.CanonicalSHA256 != runs[0].CanonicalSHA256 {
				return fmt.Errorf("cross-lane canonical digest mismatch for vector set %s: lane %s disagrees with lane %s", vectorSet, run.LaneID, runs[0].LaneID)
			}
			if run.MIDSetSHA256 != runs[0].MIDSetSHA256 {
				return fmt.Errorf("cross-lane mid-set digest mismatch for vector set %s: lane %s disagrees with lane %s", vectorSet, run.LaneID, runs[0].LaneID)
			}
		}
	}

	if e.AggregateCanonical != baseline.CanonicalSHA256 {
		return fmt.Errorf("aggregate canonical digest mismatch")
	}
	if e.AggregateMIDSet != baseline.MIDSetSHA256 {
		return fmt.Errorf("aggregate mid-set digest mismatch")
	}

	sets := append([]string(nil), e.RequiredVectorSets...)
	sort.Strings(sets)
	wantSets := append([]string(nil), p.RequiredVectorSets...)
	sort.Strings(wantSets)
	if strings.Join(sets, ",") != strings.Join(wantSets, ",") {
		return fmt.Errorf("required_vector_sets mismatch")
	}

	return nil
}

func validateSHA256Token(name, value string) error {
	token := strings.TrimSpace(value)
	if len(token) != 64 {
		return fmt.Errorf("%s must be 64 hex characters", name)
	}
	if _, err := hex.DecodeString(token); err != nil {
		return fmt.Errorf("%s must be valid hex: %w", name, err)
	}
	return nil
}
