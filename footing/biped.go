package footing

import (
	mgl "github.com/go-gl/mathgl/mgl32"
)

// Placement is one foot's per-tick request for its limb solver.
type Placement struct {
	Target mgl.Vec3
	Pole   mgl.Vec3
	Normal mgl.Vec3
}

type Gait int

const (
	Idle Gait = iota
	Walking
	Strafing
)

func (g Gait) String() string {
	switch g {
	case Idle:
		return "idle"
	case Walking:
		return "walking"
	case Strafing:
		return "strafing"
	}
	return "unknown"
}

// Biped drives a left and a right foot from the body's velocity.
type Biped struct {
	Left  *Foot
	Right *Foot
	gait  Gait
}

func NewBiped(cfg Config, leftRest, rightRest, leftStrafe, rightStrafe mgl.Vec3) *Biped {
	return &Biped{
		Left:  NewFoot(cfg, leftRest, leftStrafe),
		Right: NewFoot(cfg, rightRest, rightStrafe),
	}
}

// Gait returns the gait chosen by the last Step.
func (p *Biped) Gait() Gait { return p.gait }

// GaitFor classifies the body's motion.
func GaitFor(cfg Config, b Body) Gait {
	if b.Velocity.Len() <= cfg.MoveThreshold {
		return Idle
	}
	dir, _ := unit(b.Velocity)
	right, ok := unit(b.Right)
	if ok && abs(right.Dot(dir)) > cfg.StrafeThreshold {
		return Strafing
	}
	return Walking
}

// Step advances both feet by dt. Tips are the current end joint positions
// used for surface probing.
func (p *Biped) Step(g Ground, b Body, leftHip, rightHip, leftTip, rightTip mgl.Vec3, dt float32) (left, right Placement) {
	p.gait = GaitFor(p.Left.Config, b)
	left = p.step(p.Left, g, b, leftHip, leftTip, dt)
	right = p.step(p.Right, g, b, rightHip, rightTip, dt)
	return left, right
}

func (p *Biped) step(f *Foot, g Ground, b Body, hip, tip mgl.Vec3, dt float32) Placement {
	var target mgl.Vec3
	switch p.gait {
	case Idle:
		target = f.Idle(g, hip, b, dt)
	case Strafing:
		target = f.Walk(g, hip, b, f.StrafeOffset, dt)
	default:
		target = f.Walk(g, hip, b, mgl.Vec3{}, dt)
	}
	return Placement{
		Target: target,
		Pole:   pole(f.Config, b, hip),
		Normal: f.Normal(g, tip, b, dt),
	}
}

// pole sits ahead of the knee so legs bend forward.
func pole(cfg Config, b Body, hip mgl.Vec3) mgl.Vec3 {
	fwd, ok := unit(b.Forward)
	if !ok {
		fwd = mgl.Vec3{0, 0, 1}
	}
	return hip.Add(fwd.Mul(cfg.PoleForward)).Sub(b.up().Mul(cfg.PoleHeight))
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
