package ik

import (
	"fmt"

	mgl "github.com/go-gl/mathgl/mgl32"
)

// Mode tells which branch produced a pose.
type Mode int

const (
	Reachable Mode = iota
	Stretched
)

func (m Mode) String() string {
	switch m {
	case Reachable:
		return "reachable"
	case Stretched:
		return "stretched"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Result is the outcome of one solve. Positions holds one entry per joint,
// root first.
type Result struct {
	Positions   []mgl.Vec3
	Mode        Mode
	Iterations  int
	Converged   bool
	DistanceSqr float32 // end joint to target after the solve
}

// Solve runs the solver on a copy of positions and returns the new pose.
// The only error is a position buffer that does not match the model.
func Solve(model *ChainModel, positions []mgl.Vec3, target, pole mgl.Vec3, p Params) (Result, error) {
	if len(positions) != model.Len() {
		return Result{}, fmt.Errorf("ik: %d positions for a %d joint chain", len(positions), model.Len())
	}
	buf := make([]mgl.Vec3, len(positions))
	copy(buf, positions)
	return SolveInPlace(model, buf, target, pole, p), nil
}

// SolveInPlace solves directly on buf, which must hold model.Len() positions.
// It never fails: degenerate geometry is skipped joint by joint, and the root
// is never moved.
func SolveInPlace(model *ChainModel, buf []mgl.Vec3, target, pole mgl.Vec3, p Params) Result {
	p = p.Normalize()
	end := len(buf) - 1
	res := Result{Positions: buf}

	// A target that is not a number keeps the end where it is.
	if !isFinite(target) {
		target = buf[end]
	}
	if !isFinite(pole) {
		p.AttractionStrength = 0
	}

	if buf[0].Sub(target).Len() > model.TotalReach()+p.StretchMargin {
		Stretch(model, buf, target)
		res.Mode = Stretched
		res.DistanceSqr = distSqr(buf[end], target)
		return res
	}

	for res.Iterations < p.MaxIterations {
		if distSqr(buf[end], target) < p.Delta {
			break
		}
		backward(model, buf, target, pole, p)
		forward(model, buf)
		res.Iterations++
	}
	res.DistanceSqr = distSqr(buf[end], target)
	res.Converged = res.DistanceSqr < p.Delta
	return res
}

// Stretch lays every joint on the straight line from the root toward target
// at its bind segment length. The root stays where it is, so the end lands
// model.Length() away from it.
func Stretch(model *ChainModel, buf []mgl.Vec3, target mgl.Vec3) {
	dir, ok := direction(target.Sub(buf[0]))
	if !ok {
		return
	}
	for i := 1; i < len(buf); i++ {
		buf[i] = buf[i-1].Add(dir.Mul(model.SegmentLength(i - 1)))
	}
}

// backward walks end to root. The end goes onto the target and each interior
// joint is put back at its segment length from the outward neighbour. A joint
// that bends away from the pole is first pulled toward it; once every joint
// is on the pole side the passes are plain FABRIK and settle on the target.
func backward(model *ChainModel, buf []mgl.Vec3, target, pole mgl.Vec3, p Params) {
	end := len(buf) - 1
	if distSqr(target, buf[0]) > epsilon*epsilon {
		if p.ClampEndStep {
			buf[end] = moveTowards(buf[end], target, model.SegmentLength(end-1))
		} else {
			buf[end] = target
		}
	}
	for i := end - 1; i > 0; i-- {
		length := model.SegmentLength(i)
		if p.AttractionStrength > 0 && bendsAwayFromPole(buf[0], target, buf[i], pole) {
			if dir, ok := direction(pole.Sub(buf[i])); ok {
				buf[i] = buf[i].Add(dir.Mul(p.AttractionStrength * length))
			}
		}
		buf[i] = reproject(buf[i], buf[i+1], length)
	}
}

// forward walks root to end, restoring every segment length from the fixed
// root outward. A joint sitting on its parent falls back to the bind
// direction of its segment.
func forward(model *ChainModel, buf []mgl.Vec3) {
	for i := 1; i < len(buf); i++ {
		length := model.SegmentLength(i - 1)
		dir, ok := direction(buf[i].Sub(buf[i-1]))
		if !ok {
			dir, _ = direction(model.joints[i].BindPosition.Sub(model.joints[i-1].BindPosition))
		}
		buf[i] = buf[i-1].Add(dir.Mul(length))
	}
}
