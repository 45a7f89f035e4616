package replay

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LaneKind identifies which public entry point a replay lane drives.
type LaneKind string

const (
	// LaneValuePath drives MIDFull/MIDBind over an in-memory descriptor.
	LaneValuePath LaneKind = "value_path"
	// LaneJSONPath drives MIDFullJSON over raw JSON bytes.
	LaneJSONPath LaneKind = "json_path"
	// LaneFastPath drives MIDFromCanonicalBytes over pre-built CANON_BYTES.
	LaneFastPath LaneKind = "fast_path"
)

// LaneMatrix defines the offline replay execution lanes: one or more
// repeated invocations of a single entry point against a fixed vector
// set, used to demonstrate that every entry point is deterministic and
// that lanes replaying the same vector set agree with one another.
type LaneMatrix struct {
	Version string     `yaml:"version" json:"version"`
	Lanes   []LaneSpec `yaml:"lanes" json:"lanes"`
}

// LaneSpec is one replay lane.
type LaneSpec struct {
	ID        string       `yaml:"id" json:"id"`
	Kind      LaneKind     `yaml:"kind" json:"kind"`
	VectorSet string       `yaml:"vector_set" json:"vector_set"`
	Replays   int          `yaml:"replays" json:"replays"`
	Runner    RunnerConfig `yaml:"runner" json:"runner"`
}

// RunnerConfig is an execution command contract for a lane.
type RunnerConfig struct {
	Kind    string            `yaml:"kind" json:"kind"`
	Prepare []string          `yaml:"prepare" json:"prepare"`
	Replay  []string          `yaml:"replay" json:"replay"`
	Cleanup []string          `yaml:"cleanup" json:"cleanup"`
	Env     map[string]string `yaml:"env" json:"env"`
}

// ReplayProfile defines required lanes, vector sets, and gate policy.
type ReplayProfile struct {
	Version            string   `yaml:"version" json:"version"`
	Name               string   `yaml:"name" json:"name"`
	RequiredLanes      []string `yaml:"required_lanes" json:"required_lanes"`
	RequiredVectorSets []string `yaml:"required_vector_sets" json:"required_vector_sets"`
	MinReplays         int      `yaml:"min_replays" json:"min_replays"`
	HardReleaseGate    bool     `yaml:"hard_release_gate" json:"hard_release_gate"`
	EvidenceRequired   bool     `yaml:"evidence_required" json:"evidence_required"`
}

// LoadLaneMatrix reads, decodes, and validates a replay lane matrix document.
//
//nolint:gosec // matrix path is explicit operator input for release-gate validation.
func LoadLaneMatrix(path string) (*LaneMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lane matrix: %w", err)
	}
	var m LaneMatrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode lane matrix yaml: %w", err)
	}
	if err := ValidateLaneMatrix(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadReplayProfile reads, decodes, and validates a replay profile document.
//
//nolint:gosec // profile path is explicit operator input for release-gate validation.
func LoadReplayProfile(path string) (*ReplayProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay profile: %w", err)
	}
	var p ReplayProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode replay profile yaml: %w", err)
	}
	if err := ValidateReplayProfile(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ValidateLaneMatrix validates lane matrix semantics and coverage
// requirements: the matrix must exercise all three public entry points
// so that evidence can demonstrate multi-path determinism.
//
//nolint:gocyclo,cyclop // lane matrix validation is explicit to keep release-gate failures actionable.
func ValidateLaneMatrix(m *LaneMatrix) error {
	if m == nil {
		return fmt.Errorf("lane matrix is nil")
	}
	if m.Version == "" {
		return fmt.Errorf("lane matrix version is required")
	}
	if len(m.Lanes) == 0 {
		return fmt.Errorf("lane matrix must include at least one lane")
	}

	seen := make(map[string]struct{}, len(m.Lanes))
	haveKind := make(map[LaneKind]bool, 3)
	for i := range m.Lanes {
		l := &m.Lanes[i]
		if l.ID == "" {
			return fmt.Errorf("lane[%d] id is required", i)
		}
		if _, ok := seen[l.ID]; ok {
			return fmt.Errorf("duplicate lane id: %s", l.ID)
		}
		seen[l.ID] = struct{}{}

		switch l.Kind {
		case LaneValuePath, LaneJSONPath, LaneFastPath:
			haveKind[l.Kind] = true
		default:
			return fmt.Errorf("lane %s: invalid kind %q", l.ID, l.Kind)
		}
		if l.VectorSet == "" {
			return fmt.Errorf("lane %s: vector_set is required", l.ID)
		}
		if l.Replays < 0 {
			return fmt.Errorf("lane %s: replays cannot be negative", l.ID)
		}
		if len(l.Runner.Replay) == 0 {
			return fmt.Errorf("lane %s: runner.replay command is required", l.ID)
		}
		if l.Runner.Kind == "" {
			return fmt.Errorf("lane %s: runner.kind is required", l.ID)
		}
	}
	for _, k := range []LaneKind{LaneValuePath, LaneJSONPath, LaneFastPath} {
		if !haveKind[k] {
			return fmt.Errorf("lane matrix must include at least one %s lane", k)
		}
	}
	return nil
}

// ValidateReplayProfile validates profile semantics required by replay gates.
func ValidateReplayProfile(p *ReplayProfile) error {
	if p == nil {
		return fmt.Errorf("replay profile is nil")
	}
	if p.Version == "" {
		return fmt.Errorf("replay profile version is required")
	}
	if p.Name == "" {
		return fmt.Errorf("replay profile name is required")
	}
	if len(p.RequiredVectorSets) == 0 {
		return fmt.Errorf("replay profile required_vector_sets cannot be empty")
	}
	if p.MinReplays < 1 {
		return fmt.Errorf("replay profile min_replays must be >= 1")
	}
	if !p.EvidenceRequired {
		return fmt.Errorf("replay profile evidence_required must be true")
	}
	return nil
}

func requiredLaneIDs(m *LaneMatrix, p *ReplayProfile) ([]string, error) {
	if len(p.RequiredLanes) == 0 {
		ids := make([]string, 0, len(m.Lanes))
		for _, l := range m.Lanes {
			ids = append(ids, l.ID)
		}
		sort.Strings(ids)
		return ids, nil
	}
	laneIndex := make(map[string]struct{}, len(m.Lanes))
	for _, l := range m.Lanes {
		laneIndex[l.ID] = struct{}{}
	}
	ids := make([]string, 0, len(p.RequiredLanes))
	seen := make(map[string]struct{}, len(p.RequiredLanes))
	for _, id := range p.RequiredLanes {
		if _, ok := laneIndex[id]; !ok {
			return nil, fmt.Errorf("required lane %q not present in matrix", id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func requiredReplayCount(lane LaneSpec, p *ReplayProfile) int {
	count := p.MinReplays
	if lane.Replays > count {
		count = lane.Replays
	}
	return count
}
