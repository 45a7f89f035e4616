package replay

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadLaneMatrix(t *testing.T) {
	m, err := LoadLaneMatrix(filepath.Join("..", "lanes.yaml"))
	if err != nil {
		t.Fatalf("load lane matrix: %v", err)
	}
	if len(m.Lanes) < 3 {
		t.Fatalf("expected at least one lane per entry point, got %d", len(m.Lanes))
	}
}

func TestLoadReplayProfile(t *testing.T) {
	p, err := LoadReplayProfile(filepath.Join("..", "profiles", "maximal.yaml"))
	if err != nil {
		t.Fatalf("load replay profile: %v", err)
	}
	if !p.HardReleaseGate {
		t.Fatal("expected hard_release_gate=true")
	}
	if p.MinReplays < 2 {
		t.Fatalf("expected min_replays>=2, got %d", p.MinReplays)
	}
}

func TestValidateLaneMatrixRequiresAllThreeKinds(t *testing.T) {
	m := &LaneMatrix{
		Version: "v1",
		Lanes: []LaneSpec{
			{ID: "a", Kind: LaneValuePath, VectorSet: "core", Runner: RunnerConfig{Kind: "in_process", Replay: []string{"true"}}},
		},
	}
	err := ValidateLaneMatrix(m)
	if err == nil || !strings.Contains(err.Error(), "json_path") {
		t.Fatalf("expected missing-json_path validation error, got %v", err)
	}
}

func TestValidateLaneMatrixRejectsDuplicateIDs(t *testing.T) {
	m := &LaneMatrix{
		Version: "v1",
		Lanes: []LaneSpec{
			{ID: "a", Kind: LaneValuePath, VectorSet: "core", Runner: RunnerConfig{Kind: "in_process", Replay: []string{"true"}}},
			{ID: "a", Kind: LaneJSONPath, VectorSet: "core", Runner: RunnerConfig{Kind: "in_process", Replay: []string{"true"}}},
		},
	}
	err := ValidateLaneMatrix(m)
	if err == nil || !strings.Contains(err.Error(), "duplicate lane id") {
		t.Fatalf("expected duplicate lane id error, got %v", err)
	}
}

func TestValidateReplayProfileRequiresEvidence(t *testing.T) {
	p := &ReplayProfile{
		Version:            "v1",
		Name:               "p",
		RequiredVectorSets: []string{"core"},
		MinReplays:         1,
		HardReleaseGate:    true,
		EvidenceRequired:   false,
	}
	if err := ValidateReplayProfile(p); err == nil {
		t.Fatal("expected evidence_required validation error")
	}
}
