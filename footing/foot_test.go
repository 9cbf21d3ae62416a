package footing

import (
	"testing"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

const tick = 0.02

func standing() Body {
	return Body{
		Position: mgl.Vec3{0, 1, 0},
		Forward:  mgl.Vec3{0, 0, 1},
		Right:    mgl.Vec3{1, 0, 0},
		Up:       mgl.Vec3{0, 1, 0},
		Grounded: true,
	}
}

func TestGrounded(t *testing.T) {
	g := flatGround()
	b := standing()
	assert.True(t, Grounded(g, b, mgl.Vec3{}, 2))
	assert.False(t, Grounded(g, b, mgl.Vec3{}, 0.5))
	assert.False(t, Grounded(g, b, mgl.Vec3{0, 5, 0}, 2))
}

func TestFootIdle(t *testing.T) {
	g := flatGround()
	f := NewFoot(DefaultConfig(), mgl.Vec3{0, 0, 0.1}, mgl.Vec3{})
	b := standing()

	// first contact snaps
	got := f.Idle(g, mgl.Vec3{0.2, 1, 0}, b, tick)
	assertVec(t, mgl.Vec3{0.2, 0, 0.1}, got)

	// later moves are smoothed
	got = f.Idle(g, mgl.Vec3{1.2, 1, 0}, b, tick)
	assertVec(t, mgl.Vec3{1.2, 0, 0.1}, f.Planted())
	assert.Greater(t, got.X(), float32(0.2))
	assert.Less(t, got.X(), float32(1.2))
	assert.Equal(t, got, f.Target())
}

func TestFootIdleFloorOffset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FloorOffset = mgl.Vec3{0, 0.05, 0}
	f := NewFoot(cfg, mgl.Vec3{}, mgl.Vec3{})
	got := f.Idle(flatGround(), mgl.Vec3{0, 1, 0}, standing(), tick)
	assertVec(t, mgl.Vec3{0, 0.05, 0}, got)
}

func TestFootIdleNoGround(t *testing.T) {
	f := NewFoot(DefaultConfig(), mgl.Vec3{}, mgl.Vec3{})
	f.Reset(mgl.Vec3{1, 2, 3})
	got := f.Idle(flatGround(), mgl.Vec3{0, -1, 0}, standing(), tick)
	assertVec(t, mgl.Vec3{1, 2, 3}, got)
}

func TestFootWalkSteps(t *testing.T) {
	g := flatGround()
	f := NewFoot(DefaultConfig(), mgl.Vec3{}, mgl.Vec3{})
	b := standing()
	b.Velocity = mgl.Vec3{0, 0, 2}

	got := f.Walk(g, mgl.Vec3{0.2, 1, 0}, b, mgl.Vec3{}, tick)
	assertVec(t, mgl.Vec3{0.2, 0, 0}, got)

	// within reach: no new step
	b.Position = mgl.Vec3{0, 1, 0.5}
	f.Walk(g, mgl.Vec3{0.2, 1, 0.5}, b, mgl.Vec3{}, tick)
	assertVec(t, mgl.Vec3{0.2, 0, 0}, f.Planted())

	// trailing too far: step ahead along the velocity
	b.Position = mgl.Vec3{0, 1, 1.5}
	got = f.Walk(g, mgl.Vec3{0.2, 1, 1.5}, b, mgl.Vec3{}, tick)
	assertVec(t, mgl.Vec3{0.2, 0, 2.5}, f.Planted())
	assert.Greater(t, got.Z(), float32(0))
	assert.Less(t, got.Z(), float32(2.5))
}

func TestFootWalkConvergesOnPlanted(t *testing.T) {
	g := flatGround()
	f := NewFoot(DefaultConfig(), mgl.Vec3{}, mgl.Vec3{})
	b := standing()
	f.Reset(mgl.Vec3{0.2, 0, -2})

	hip := mgl.Vec3{0.2, 1, 0}
	b.Velocity = mgl.Vec3{0, 0, 1}
	prev := f.Target().Sub(mgl.Vec3{0.2, 0, 1}).Len()
	f.Walk(g, hip, b, mgl.Vec3{}, tick)
	for i := 0; i < 100; i++ {
		b.Velocity = mgl.Vec3{}
		f.Walk(g, hip, b, mgl.Vec3{}, tick)
	}
	got := f.Target().Sub(f.Planted()).Len()
	assert.Less(t, got, prev)
	assert.Less(t, got, float32(1e-3))
}

func TestFootNormal(t *testing.T) {
	cfg := DefaultConfig()
	slope := mgl.Vec3{0, 0.8, 0.6}
	g := Plane{Normal: slope}
	b := standing()

	f := NewFoot(cfg, mgl.Vec3{}, mgl.Vec3{})
	assertVec(t, slope, f.Normal(g, mgl.Vec3{}, b, 1))
	assertVec(t, slope, f.SurfaceNormal())

	// airborne feet ease back to the body's up
	b.Grounded = false
	assertVec(t, mgl.Vec3{0, 1, 0}, f.Normal(g, mgl.Vec3{}, b, 1))
}

func TestFootNormalIsGradual(t *testing.T) {
	slope := mgl.Vec3{0, 0.8, 0.6}
	f := NewFoot(DefaultConfig(), mgl.Vec3{}, mgl.Vec3{})
	b := standing()

	first := f.Normal(Plane{Normal: slope}, mgl.Vec3{}, b, tick)
	second := f.Normal(Plane{Normal: slope}, mgl.Vec3{}, b, tick)
	assert.InDelta(t, 1, first.Len(), tolerance)
	assert.Less(t, first.Dot(slope), second.Dot(slope))
	assert.Less(t, second.Dot(slope), float32(1))
}
