package footing

import (
	mgl "github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultLerpSpeed       = 10
	DefaultMaxFootDistance = 1
	DefaultMoveThreshold   = 0.1
	DefaultStrafeThreshold = 0.5
	DefaultRayLength       = 100
	DefaultStepHeight      = 0.5
	DefaultPoleForward     = 1
	DefaultPoleHeight      = 0.5
)

type Config struct {
	// LerpSpeed is the smoothing rate per second; each tick moves
	// LerpSpeed*dt of the way toward the planted point.
	LerpSpeed       float32
	MaxFootDistance float32
	MoveThreshold   float32
	StrafeThreshold float32
	// FloorOffset is added to every ground hit.
	FloorOffset mgl.Vec3
	RayLength   float32
	// StepHeight lifts the surface probe above the foot tip.
	StepHeight  float32
	PoleForward float32
	PoleHeight  float32
}

func DefaultConfig() Config {
	return Config{
		LerpSpeed:       DefaultLerpSpeed,
		MaxFootDistance: DefaultMaxFootDistance,
		MoveThreshold:   DefaultMoveThreshold,
		StrafeThreshold: DefaultStrafeThreshold,
		RayLength:       DefaultRayLength,
		StepHeight:      DefaultStepHeight,
		PoleForward:     DefaultPoleForward,
		PoleHeight:      DefaultPoleHeight,
	}
}

// Body is the character root as seen by the placement policy.
type Body struct {
	Position mgl.Vec3
	Velocity mgl.Vec3
	Forward  mgl.Vec3
	Right    mgl.Vec3
	Up       mgl.Vec3
	Grounded bool
}

func (b Body) up() mgl.Vec3 {
	if u, ok := unit(b.Up); ok {
		return u
	}
	return mgl.Vec3{0, 1, 0}
}

// Grounded reports whether ground lies within dist below the body.
func Grounded(g Ground, b Body, offset mgl.Vec3, dist float32) bool {
	_, ok := g.Raycast(b.Position.Add(offset), b.up().Mul(-1), dist)
	return ok
}

// Foot tracks one foot's smoothed IK target, the point it is stepping to
// and the surface normal under it.
type Foot struct {
	Config       Config
	RestOffset   mgl.Vec3
	StrafeOffset mgl.Vec3

	target  mgl.Vec3
	planted mgl.Vec3
	normal  mgl.Vec3
	placed  bool
}

func NewFoot(cfg Config, rest, strafe mgl.Vec3) *Foot {
	return &Foot{Config: cfg, RestOffset: rest, StrafeOffset: strafe, normal: mgl.Vec3{0, 1, 0}}
}

func (f *Foot) Target() mgl.Vec3  { return f.target }
func (f *Foot) Planted() mgl.Vec3 { return f.planted }
func (f *Foot) SurfaceNormal() mgl.Vec3 {
	return f.normal
}

// Reset places the foot at p with no smoothing.
func (f *Foot) Reset(p mgl.Vec3) {
	f.target, f.planted, f.placed = p, p, true
}

// Idle plants the foot straight below hip+RestOffset.
func (f *Foot) Idle(g Ground, hip mgl.Vec3, b Body, dt float32) mgl.Vec3 {
	if hit, ok := g.Raycast(hip.Add(f.RestOffset), b.up().Mul(-1), f.Config.RayLength); ok {
		f.plant(hit.Point.Add(f.Config.FloorOffset))
	}
	return f.smooth(hip, dt)
}

// Walk steps ahead along the velocity once the foot trails more than
// MaxFootDistance behind body+offset, measured across the ground plane.
func (f *Foot) Walk(g Ground, hip mgl.Vec3, b Body, offset mgl.Vec3, dt float32) mgl.Vec3 {
	up := b.up()
	down := up.Mul(-1)
	hit, ok := g.Raycast(hip, down, f.Config.RayLength)
	if !ok {
		return f.smooth(hip, dt)
	}
	if !f.placed {
		f.plant(hit.Point.Add(offset).Add(f.Config.FloorOffset))
	}

	lag := b.Position.Add(offset).Sub(f.target)
	lag = lag.Sub(up.Mul(lag.Dot(up)))
	if lag.Len() > f.Config.MaxFootDistance {
		vel, moving := unit(b.Velocity)
		if !moving {
			vel = mgl.Vec3{}
		}
		ahead := hit.Point.Add(offset).Add(vel.Mul(f.Config.MaxFootDistance))
		if step, ok := g.Raycast(hip, ahead.Sub(hip), f.Config.RayLength); ok {
			f.plant(step.Point.Add(f.Config.FloorOffset))
		}
	}
	return f.smooth(hip, dt)
}

// Normal eases the remembered surface normal toward the ground under tip,
// or toward the body's up when airborne.
func (f *Foot) Normal(g Ground, tip mgl.Vec3, b Body, dt float32) mgl.Vec3 {
	up := b.up()
	surface := up
	if b.Grounded {
		if hit, ok := g.Raycast(tip.Add(up.Mul(f.Config.StepHeight)), up.Mul(-1), f.Config.RayLength); ok {
			surface = hit.Normal
		}
	}
	t := clamp01(f.Config.LerpSpeed * dt)
	n, ok := unit(f.normal.Add(surface.Sub(f.normal).Mul(t)))
	if !ok {
		n = surface
	}
	f.normal = n
	return n
}

func (f *Foot) plant(p mgl.Vec3) {
	f.planted = p
	if !f.placed {
		f.target = p
		f.placed = true
	}
}

// smooth moves the target toward the planted point, arcing around the hip.
func (f *Foot) smooth(hip mgl.Vec3, dt float32) mgl.Vec3 {
	if !f.placed {
		return f.target
	}
	t := f.Config.LerpSpeed * dt
	f.target = hip.Add(Slerp(f.target.Sub(hip), f.planted.Sub(hip), t))
	return f.target
}
