package ik

import (
	"errors"
	"sync"
	"testing"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	chains []string
	joints [][]string
	poses  []Pose
}

func (s *recordingSink) CommitPose(chain string, joints []string, pose Pose) {
	s.chains = append(s.chains, chain)
	s.joints = append(s.joints, joints)
	s.poses = append(s.poses, pose)
}

func boundRuntime(t *testing.T, opts ...Option) *ChainRuntime {
	t.Helper()
	r := NewChainRuntime(DefaultConfig("left"), opts...)
	require.NoError(t, r.Bind(Snapshot{Names: []string{"hip", "knee", "foot"}, Positions: legBind()}))
	return r
}

func TestRuntimeUnbound(t *testing.T) {
	r := NewChainRuntime(DefaultConfig("left"))
	assert.Equal(t, Unbound, r.State())

	pose := r.Solve(Request{Target: mgl.Vec3{0, -1, 0}})
	assert.Empty(t, pose.Positions)
	assert.Empty(t, r.CurrentPose().Positions)
	assert.Equal(t, Unbound, r.State())

	r.SetRoot(mgl.Vec3{1, 1, 1})
	assert.Nil(t, r.Model())
}

func TestRuntimeBindInvalid(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewChainRuntime(DefaultConfig("left"), WithLogger(zap.New(core)))

	err := r.Bind(Snapshot{Positions: []mgl.Vec3{{0, 0, 0}}})
	require.Error(t, err)

	var chainErr *InvalidChainError
	assert.True(t, errors.As(err, &chainErr))
	assert.Contains(t, err.Error(), `"left"`)
	assert.Equal(t, Unbound, r.State())
	assert.Equal(t, 1, logs.FilterMessage("chain bind failed").Len())
}

func TestRuntimeBindKeepsPreviousOnFailure(t *testing.T) {
	r := boundRuntime(t)
	err := r.Bind(Snapshot{Positions: []mgl.Vec3{{0, 0, 0}, {0, 0, 0}}})
	require.Error(t, err)
	assert.Equal(t, Bound, r.State())
	assert.Equal(t, 3, r.Model().Len())
}

func TestRuntimeBind(t *testing.T) {
	r := boundRuntime(t)
	assert.Equal(t, Bound, r.State())
	assert.Equal(t, "left", r.Name())
	assert.Equal(t, []string{"hip", "knee", "foot"}, r.Joints())

	pose := r.CurrentPose()
	assert.Equal(t, legBind(), pose.Positions)
	assert.Len(t, pose.Orientations, 3)

	unnamed := NewChainRuntime(DefaultConfig("arm"))
	require.NoError(t, unnamed.Bind(Snapshot{Positions: legBind()}))
	assert.Equal(t, []string{"joint0", "joint1", "joint2"}, unnamed.Joints())
}

func TestRuntimeSolveCommits(t *testing.T) {
	sink := &recordingSink{}
	r := boundRuntime(t, WithSink(sink))

	pose := r.Solve(Request{Target: mgl.Vec3{0.3, -0.8, 0.2}, Pole: mgl.Vec3{0, 0, 1}})
	assert.Equal(t, Solving, r.State())
	assert.Equal(t, Reachable, pose.Mode)
	assert.Equal(t, mgl.Vec3{0, 0, 0}, pose.Positions[0])
	assertLengths(t, r.Model(), pose.Positions)

	require.Len(t, sink.poses, 1)
	assert.Equal(t, "left", sink.chains[0])
	assert.Equal(t, []string{"hip", "knee", "foot"}, sink.joints[0])
	assert.Equal(t, pose, sink.poses[0])

	// the committed pose is a copy
	sink.poses[0].Positions[1] = mgl.Vec3{5, 5, 5}
	assert.NotEqual(t, mgl.Vec3{5, 5, 5}, r.CurrentPose().Positions[1])
}

func TestRuntimeIdleTargetConverges(t *testing.T) {
	r := boundRuntime(t)
	req := Request{Target: mgl.Vec3{0.2, -0.8, 0.1}, Pole: mgl.Vec3{0, -0.5, 1}}

	for tick := 0; tick < 5; tick++ {
		pose := r.Solve(req)
		res := r.LastResult()
		assert.Equal(t, Reachable, res.Mode)
		assert.True(t, res.Converged, "tick %d: %g", tick, res.DistanceSqr)
		assert.True(t, near(req.Target, pose.Positions[2], 1e-3), "tick %d: %v", tick, pose.Positions[2])
		if tick > 0 {
			// a settled chain needs no further passes
			assert.Zero(t, res.Iterations, "tick %d", tick)
		}
	}
	assert.Greater(t, r.CurrentPose().Positions[1].Z(), float32(0))
}

func TestRuntimeCurrentPoseIsCopy(t *testing.T) {
	r := boundRuntime(t)
	r.Solve(Request{Target: mgl.Vec3{0.3, -0.8, 0.2}, Pole: mgl.Vec3{0, 0, 1}})

	pose := r.CurrentPose()
	pose.Positions[0] = mgl.Vec3{9, 9, 9}
	pose.Orientations[0] = mgl.Quat{}
	assert.Equal(t, mgl.Vec3{0, 0, 0}, r.CurrentPose().Positions[0])
	assert.NotEqual(t, mgl.Quat{}, r.CurrentPose().Orientations[0])

	res := r.LastResult()
	res.Positions[0] = mgl.Vec3{9, 9, 9}
	assert.Equal(t, mgl.Vec3{0, 0, 0}, r.LastResult().Positions[0])
}

func TestRuntimeModeSwitchEachTick(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := boundRuntime(t, WithLogger(zap.New(core)))

	inReach := Request{Target: mgl.Vec3{0.2, -0.8, 0}, Pole: mgl.Vec3{0, 0, 1}}
	far := Request{Target: mgl.Vec3{0, -3, 0}, Pole: mgl.Vec3{0, 0, 1}}

	assert.Equal(t, Reachable, r.Solve(inReach).Mode)
	assert.Equal(t, Stretched, r.Solve(far).Mode)
	assert.Equal(t, Reachable, r.Solve(inReach).Mode)
	assert.Equal(t, Reachable, r.LastResult().Mode)

	assert.Equal(t, 2, logs.FilterMessage("chain mode changed").Len())
	assert.Equal(t, 1, logs.FilterMessage("chain bound").Len())
}

func TestRuntimeStretchedPose(t *testing.T) {
	r := boundRuntime(t)
	pose := r.Solve(Request{Target: mgl.Vec3{0, 0, -5}, Pole: mgl.Vec3{0, 0, 1}})

	assert.Equal(t, Stretched, pose.Mode)
	assert.Equal(t, mgl.Vec3{0, 0, 0}, pose.Positions[0])
	assert.InDelta(t, 1.0, pose.Positions[2].Len(), lengthTolerance)
	assertLengths(t, r.Model(), pose.Positions)
}

func TestRuntimeSetRoot(t *testing.T) {
	r := boundRuntime(t)
	r.SetRoot(mgl.Vec3{1, 2, 3})

	pose := r.CurrentPose()
	assert.Equal(t, mgl.Vec3{1, 2, 3}, pose.Positions[0])
	assert.True(t, near(pose.Positions[2], mgl.Vec3{1, 1, 3}, 1e-4))

	solved := r.Solve(Request{Target: mgl.Vec3{1.2, 1.2, 3.1}, Pole: mgl.Vec3{1, 2, 4}})
	assert.Equal(t, mgl.Vec3{1, 2, 3}, solved.Positions[0])
	assertLengths(t, r.Model(), solved.Positions)
}

func TestRuntimeSurfaceAlignment(t *testing.T) {
	cfg := DefaultConfig("left")
	cfg.FootBlend = 1
	r := NewChainRuntime(cfg)
	require.NoError(t, r.Bind(Snapshot{Positions: legBind()}))

	normal := mgl.Vec3{0, 0.8, 0.6}
	pose := r.Solve(Request{
		Target:        mgl.Vec3{0.1, -0.9, 0.1},
		Pole:          mgl.Vec3{0, 0, 1},
		SurfaceNormal: normal,
		Right:         mgl.Vec3{1, 0, 0},
	})
	assertVec(t, normal, pose.Orientations[2].Rotate(axisY))

	// without a normal the end repeats the last bone again
	pose = r.Solve(Request{Target: mgl.Vec3{0.1, -0.9, 0.1}, Pole: mgl.Vec3{0, 0, 1}})
	assert.Equal(t, pose.Orientations[1], pose.Orientations[2])
}

func TestRuntimeSurfaceBlendIsGradual(t *testing.T) {
	cfg := DefaultConfig("left")
	cfg.FootBlend = 0.5
	r := NewChainRuntime(cfg)
	require.NoError(t, r.Bind(Snapshot{Positions: legBind()}))

	req := Request{
		Target:        mgl.Vec3{0.1, -0.9, 0.1},
		Pole:          mgl.Vec3{0, 0, 1},
		SurfaceNormal: mgl.Vec3{0, 1, 0},
		Right:         mgl.Vec3{1, 0, 0},
	}
	goal := SurfaceRotation(axisX, axisY)
	first := r.Solve(req).Orientations[2]
	second := r.Solve(req).Orientations[2]

	errFirst := 1 - abs(first.Dot(goal))
	errSecond := 1 - abs(second.Dot(goal))
	assert.Greater(t, errFirst, float32(0))
	assert.Less(t, errSecond, errFirst)
}

func TestRuntimeConfigDefaults(t *testing.T) {
	r := NewChainRuntime(Config{Name: "raw", FootBlend: 3})
	require.NoError(t, r.Bind(Snapshot{Positions: legBind()}))
	assert.Equal(t, mgl.QuatIdent(), r.cfg.Offset)
	assert.Equal(t, float32(1), r.cfg.FootBlend)
	assert.Equal(t, 1, r.cfg.Params.MaxIterations)

	pose := r.Solve(Request{Target: mgl.Vec3{0.2, -0.8, 0}})
	assertLengths(t, r.Model(), pose.Positions)
}

func TestRuntimesAreIndependent(t *testing.T) {
	left := boundRuntime(t)
	right := NewChainRuntime(DefaultConfig("right"))
	require.NoError(t, right.Bind(Snapshot{Positions: legBind()}))

	var wg sync.WaitGroup
	for _, r := range []*ChainRuntime{left, right} {
		wg.Add(1)
		go func(r *ChainRuntime) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Solve(Request{Target: mgl.Vec3{0.2, -0.8, float32(i) * 0.001}, Pole: mgl.Vec3{0, 0, 1}})
			}
		}(r)
	}
	wg.Wait()

	assert.Equal(t, left.CurrentPose().Positions, right.CurrentPose().Positions)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unbound", Unbound.String())
	assert.Equal(t, "bound", Bound.String())
	assert.Equal(t, "solving", Solving.String())
	assert.Equal(t, "State(9)", State(9).String())
}
