package ik

import (
	mgl "github.com/go-gl/mathgl/mgl32"
)

// Directions shorter than this are treated as zero.
const epsilon = 1e-6

func lenSqr(v mgl.Vec3) float32 {
	return v.Dot(v)
}

func distSqr(a, b mgl.Vec3) float32 {
	return lenSqr(a.Sub(b))
}

// direction returns the unit vector of v, or false when v is too short to
// have a meaningful direction.
func direction(v mgl.Vec3) (mgl.Vec3, bool) {
	l := v.Len()
	if l <= epsilon {
		return mgl.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

// moveTowards moves current toward target by at most maxDelta.
func moveTowards(current, target mgl.Vec3, maxDelta float32) mgl.Vec3 {
	d := target.Sub(current)
	l := d.Len()
	if l <= maxDelta || l <= epsilon {
		return target
	}
	return current.Add(d.Mul(maxDelta / l))
}

// reproject places p on the sphere of the given radius around center,
// keeping the direction from center. A degenerate direction leaves p as is.
func reproject(p, center mgl.Vec3, radius float32) mgl.Vec3 {
	dir, ok := direction(p.Sub(center))
	if !ok {
		return p
	}
	return center.Add(dir.Mul(radius))
}

// bendsAwayFromPole reports whether joint sits on the far side of the root
// to target axis from pole, or on the axis itself. A pole on the axis gives
// no side to bend toward.
func bendsAwayFromPole(root, target, joint, pole mgl.Vec3) bool {
	axis, ok := direction(target.Sub(root))
	if !ok {
		return false
	}
	offAxis := func(v mgl.Vec3) mgl.Vec3 {
		d := v.Sub(root)
		return d.Sub(axis.Mul(d.Dot(axis)))
	}
	side := offAxis(pole)
	if lenSqr(side) <= epsilon*epsilon {
		return false
	}
	return offAxis(joint).Dot(side) <= 0
}

func isFinite(v mgl.Vec3) bool {
	for _, c := range v {
		if c != c || c > 3.4e38 || c < -3.4e38 {
			return false
		}
	}
	return true
}
