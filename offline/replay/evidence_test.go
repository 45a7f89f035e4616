package replay

import (
	"strings"
	"testing"
)

func TestValidateEvidenceBundleParity(t *testing.T) {
	m, p, e, opts := validEvidenceFixture()
	if err := ValidateEvidenceBundle(e, m, p, opts); err != nil {
		t.Fatalf("validate evidence: %v", err)
	}
}

func TestValidateEvidenceBundleDetectsDrift(t *testing.T) {
	m, p, e, opts := validEvidenceFixture()
	e.LaneReplays[3] = mkRun("jp1", "json_path", "core", 2, strings.Repeat("b", 64))
	if err := ValidateEvidenceBundle(e, m, p, opts); err == nil {
		t.Fatal("expected drift validation error")
	}
}

func TestValidateEvidenceBundleDetectsCrossLaneDisagreement(t *testing.T) {
	m, p, e, opts := validEvidenceFixture()
	// jp1 shares vector_set "core" with vp1; disagreeing here must fail
	// the cross-entry-point determinism check even though jp1's own
	// replays are internally consistent.
	e.LaneReplays[2] = mkRun("jp1", "json_path", "core", 1, strings.Repeat("c", 64))
	e.LaneReplays[3] = mkRun("jp1", "json_path", "core", 2, strings.Repeat("c", 64))
	if err := ValidateEvidenceBundle(e, m, p, opts); err == nil {
		t.Fatal("expected cross-lane disagreement validation error")
	}
}

func TestValidateEvidenceBundleRejectsTamperedMetadata(t *testing.T) {
	m, p, base, opts := validEvidenceFixture()
	tests := []struct {
		name   string
		tamper func(*EvidenceBundle)
		want   string
	}{
		{
			name: "bundle_sha256",
			tamper: func(e *EvidenceBundle) {
				e.BundleSHA256 = strings.Repeat("b", 64)
			},
			want: "bundle_sha256 mismatch",
		},
		{
			name: "control_binary_sha256",
			tamper: func(e *EvidenceBundle) {
				e.ControlBinarySHA = strings.Repeat("b", 64)
			},
			want: "control_binary_sha256 mismatch",
		},
		{
			name: "matrix_sha256",
			tamper: func(e *EvidenceBundle) {
				e.MatrixSHA256 = strings.Repeat("b", 64)
			},
			want: "matrix_sha256 mismatch",
		},
		{
			name: "profile_sha256",
			tamper: func(e *EvidenceBundle) {
				e.ProfileSHA256 = strings.Repeat("b", 64)
			},
			want: "profile_sha256 mismatch",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := cloneEvidence(base)
			tc.tamper(e)
			err := ValidateEvidenceBundle(e, m, p, opts)
			if err == nil {
				t.Fatalf("expected %s validation error", tc.name)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func validEvidenceFixture() (*LaneMatrix, *ReplayProfile, *EvidenceBundle, EvidenceValidationOptions) {
	m := &LaneMatrix{
		Version: "v1",
		Lanes: []LaneSpec{
			{ID: "vp1", Kind: LaneValuePath, VectorSet: "core", Replays: 2, Runner: RunnerConfig{Kind: "in_process", Replay: []string{"true"}}},
			{ID: "jp1", Kind: LaneJSONPath, VectorSet: "core", Replays: 2, Runner: RunnerConfig{Kind: "in_process", Replay: []string{"true"}}},
		},
	}
	p := &ReplayProfile{
		Version:            "v1",
		Name:               "max",
		RequiredVectorSets: []string{"core"},
		MinReplays:         2,
		HardReleaseGate:    true,
		EvidenceRequired:   true,
	}
	digest := strings.Repeat("a", 64)
	e := &EvidenceBundle{
		SchemaVersion:      EvidenceSchemaVersion,
		BundleSHA256:       digest,
		ControlBinarySHA:   digest,
		MatrixSHA256:       digest,
		ProfileSHA256:      digest,
		ProfileName:        "max",
		HardReleaseGate:    true,
		RequiredVectorSets: []string{"core"},
		AggregateCanonical: digest,
		AggregateMIDSet:    digest,
		LaneReplays: []LaneRunEvidence{
			mkRun("vp1", "value_path", "core", 1, digest),
			mkRun("vp1", "value_path", "core", 2, digest),
			mkRun("jp1", "json_path", "core", 1, digest),
			mkRun("jp1", "json_path", "core", 2, digest),
		},
	}
	opts := EvidenceValidationOptions{
		ExpectedBundleSHA256:        digest,
		ExpectedControlBinarySHA256: digest,
		ExpectedMatrixSHA256:        digest,
		ExpectedProfileSHA256:       digest,
	}
	return m, p, e, opts
}

func cloneEvidence(in *EvidenceBundle) *EvidenceBundle {
	out := *in
	out.RequiredVectorSets = append([]string(nil), in.RequiredVectorSets...)
	out.LaneReplays = append([]LaneRunEvidence(nil), in.LaneReplays...)
	return &out
}

func mkRun(laneID, kind, vectorSet string, replayIndex int, digest string) LaneRunEvidence {
	return LaneRunEvidence{
		LaneID:          laneID,
		Kind:            kind,
		VectorSet:       vectorSet,
		ReplayIndex:     replayIndex,
		SessionID:       "sess",
		StartedAtUTC:    "2026-01-01T00:00:00Z",
		CompletedAtUTC:  "2026-01-01T00:00:01Z",
		CaseCount:       10,
		Passed:          true,
		CanonicalSHA256: digest,
		MIDSetSHA256:    digest,
	}
}
