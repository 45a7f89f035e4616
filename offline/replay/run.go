package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// LaneAdapter executes replay operations for one lane.
type LaneAdapter interface {
	Prepare(ctx context.Context, lane LaneSpec, bundlePath string, replayIndex int) error
	RunReplay(ctx context.Context, lane LaneSpec, bundlePath string, evidencePath string, replayIndex int) error
	Cleanup(ctx context.Context, lane LaneSpec, replayIndex int) error
}

// LaneAdapterFactory selects the correct adapter for each lane kind.
type LaneAdapterFactory func(lane LaneSpec) (LaneAdapter, error)

// RunOptions configures matrix orchestration.
type RunOptions struct {
	BundlePath          string
	BundleSHA256        string
	ControlBinarySHA256 string
	MatrixSHA256        string
	ProfileSHA256       string
	Orchestrator        string
	GlobalEnv           map[string]string
	Now                 func() time.Time
}

// RunLaneMatrix orchestrates replay execution across required lanes and
// replays, then validates the resulting evidence bundle.
//
//nolint:gocyclo,cyclop,funlen,gocognit // orchestration keeps checks explicit for reproducible replay diagnostics.
func RunLaneMatrix(ctx context.Context, matrix *LaneMatrix, profile *ReplayProfile, factory LaneAdapterFactory, opts RunOptions) (*EvidenceBundle, error) {
	if matrix == nil || profile == nil {
		return nil, fmt.Errorf("lane matrix and replay profile are required")
	}
	if err := ValidateLaneMatrix(matrix); err != nil {
		return nil, err
	}
	if err := ValidateReplayProfile(profile); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("lane adapter factory is required")
	}
	now := opts.Now
	if now == nil {
		now = wallClockNow
	}
	if opts.Orchestrator == "" {
		opts.Orchestrator = "map1-offline-replay"
	}

	requiredLanes, err := requiredLaneIDs(matrix, profile)
	if err != nil {
		return nil, err
	}
	laneIndex := make(map[string]LaneSpec, len(matrix.Lanes))
	for _, l := range matrix.Lanes {
		laneIndex[l.ID] = l
	}

	bundle := &EvidenceBundle{
		SchemaVersion:      EvidenceSchemaVersion,
		BundleSHA256:       opts.BundleSHA256,
		ControlBinarySHA:   opts.ControlBinarySHA256,
		MatrixSHA256:       opts.MatrixSHA256,
		ProfileSHA256:      opts.ProfileSHA256,
		GeneratedAtUTC:     now().UTC().Format(time.RFC3339Nano),
		Orchestrator:       opts.Orchestrator,
		ProfileName:        profile.Name,
		RequiredVectorSets: append([]string(nil), profile.RequiredVectorSets...),
		HardReleaseGate:    profile.HardReleaseGate,
	}

	tmpRoot, err := os.MkdirTemp("", "map1-offline-replay-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(tmpRoot); removeErr != nil {
			_ = removeErr
		}
	}()

	for _, laneID := range requiredLanes {
		lane := laneIndex[laneID]
		if len(opts.GlobalEnv) != 0 {
			merged := make(map[string]string, len(lane.Runner.Env)+len(opts.GlobalEnv))
			for k, v := range lane.Runner.Env {
				merged[k] = v
			}
			for k, v := range opts.GlobalEnv {
				merged[k] = v
			}
			lane.Runner.Env = merged
		}
		adapter, err := factory(lane)
		if err != nil {
			return nil, fmt.Errorf("lane %s adapter: %w", lane.ID, err)
		}
		for replayIdx := 1; replayIdx <= requiredReplayCount(lane, profile); replayIdx++ {
			if err := adapter.Prepare(ctx, lane, opts.BundlePath, replayIdx); err != nil {
				return nil, fmt.Errorf("lane %s replay %d prepare: %w", lane.ID, replayIdx, err)
			}

			evidencePath := filepath.Join(tmpRoot, fmt.Sprintf("%s-replay-%03d.json", lane.ID, replayIdx))
			runErr := adapter.RunReplay(ctx, lane, opts.BundlePath, evidencePath, replayIdx)
			cleanupErr := adapter.Cleanup(ctx, lane, replayIdx)
			if runErr != nil {
				return nil, fmt.Errorf("lane %s replay %d run: %w", lane.ID, replayIdx, runErr)
			}
			if cleanupErr != nil {
				return nil, fmt.Errorf("lane %s replay %d cleanup: %w", lane.ID, replayIdx, cleanupErr)
			}

			runEvidence, err := LoadLaneRunEvidence(evidencePath)
			if err != nil {
				return nil, fmt.Errorf("lane %s replay %d load evidence: %w", lane.ID, replayIdx, err)
			}
			bundle.LaneReplays = append(bundle.LaneReplays, *runEvidence)
		}
	}
	if len(bundle.LaneReplays) == 0 {
		return nil, fmt.Errorf("matrix execution produced no replay evidence")
	}

	sort.Slice(bundle.LaneReplays, func(i, j int) bool {
		if bundle.LaneReplays[i].LaneID == bundle.LaneReplays[j].LaneID {
			return bundle.LaneReplays[i].ReplayIndex < bundle.LaneReplays[j].ReplayIndex
		}
		return bundle.LaneReplays[i].LaneID < bundle.LaneReplays[j].LaneID
	})

	base := bundle.LaneReplays[0]
	bundle.AggregateCanonical = base.CanonicalSHA256
	bundle.AggregateMIDSet = base.MIDSetSHA256

	if err := ValidateEvidenceBundle(bundle, matrix, profile, EvidenceValidationOptions{
		ExpectedBundleSHA256:        opts.BundleSHA256,
		ExpectedControlBinarySHA256: opts.ControlBinarySHA256,
		ExpectedMatrixSHA256:        opts.MatrixSHA256,
		ExpectedProfileSHA256:       opts.ProfileSHA256,
	}); err != nil {
		return nil, err
	}
	return bundle, nil
}

// LoadLaneRunEvidence loads one lane replay evidence artifact from disk.
//
//nolint:gosec // lane evidence path is explicit operator/runtime input.
func LoadLaneRunEvidence(path string) (*LaneRunEvidence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lane evidence: %w", err)
	}
	var run LaneRunEvidence
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode lane evidence: %w", err)
	}
	return &run, nil
}

//nolint:forbidigo // default runtime clock for evidence generation when no injected clock is provided.
func wallClockNow() time.Time {
	return time.Now()
}
