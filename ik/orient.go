package ik

import (
	mgl "github.com/go-gl/mathgl/mgl32"
)

var (
	axisX = mgl.Vec3{1, 0, 0}
	axisY = mgl.Vec3{0, 1, 0}
	axisZ = mgl.Vec3{0, 0, 1}
)

// LookRotation returns the rotation that maps +Z onto forward and +Y as close
// to up as possible. A zero forward gives the identity; an up parallel to
// forward is replaced by whichever world axis is least parallel.
func LookRotation(forward, up mgl.Vec3) mgl.Quat {
	f, ok := direction(forward)
	if !ok {
		return mgl.QuatIdent()
	}
	right, ok := direction(up.Cross(f))
	if !ok {
		alt := axisY
		if abs(f.Dot(alt)) > 0.9 {
			alt = axisZ
		}
		if abs(f.Dot(alt)) > 0.9 {
			alt = axisX
		}
		right, _ = direction(alt.Cross(f))
	}
	u := f.Cross(right)
	return mgl.Mat4ToQuat(mgl.Mat3FromCols(right, u, f).Mat4()).Normalize()
}

// EulerOffset builds a rig correction rotation from degrees, applied about Z,
// then X, then Y.
func EulerOffset(x, y, z float32) mgl.Quat {
	qx := mgl.QuatRotate(mgl.DegToRad(x), axisX)
	qy := mgl.QuatRotate(mgl.DegToRad(y), axisY)
	qz := mgl.QuatRotate(mgl.DegToRad(z), axisZ)
	return qy.Mul(qx).Mul(qz).Normalize()
}

// Reconstruct derives one orientation per joint from solved positions. Each
// bone looks at its child with up as reference, then the rig offset is
// applied. The end joint has no child and repeats the last bone.
func Reconstruct(positions []mgl.Vec3, up mgl.Vec3, offset mgl.Quat) []mgl.Quat {
	out := make([]mgl.Quat, len(positions))
	if len(positions) == 0 {
		return out
	}
	for i := 0; i < len(positions)-1; i++ {
		out[i] = LookRotation(positions[i+1].Sub(positions[i]), up).Mul(offset).Normalize()
	}
	if n := len(positions); n > 1 {
		out[n-1] = out[n-2]
	} else {
		out[0] = offset
	}
	return out
}

// ReconstructStretched is Reconstruct for a stretched chain. The root turns
// toward the target while the target is below it along chainUp and away from
// it otherwise, with the offset inverted, so it does not flip half a turn
// when the target crosses behind the bend plane.
func ReconstructStretched(positions []mgl.Vec3, target, up, chainUp mgl.Vec3, offset mgl.Quat) []mgl.Quat {
	out := Reconstruct(positions, up, offset)
	if len(positions) == 0 {
		return out
	}
	dir, ok := direction(target.Sub(positions[0]))
	if !ok {
		return out
	}
	if dir.Dot(chainUp.Mul(-1)) > 0 {
		out[0] = LookRotation(dir, up).Mul(offset).Normalize()
	} else {
		out[0] = LookRotation(dir.Mul(-1), up).Mul(offset.Inverse()).Normalize()
	}
	return out
}

// SurfaceRotation aligns a foot to a ground normal while keeping it pointed
// along the body's right-handed forward.
func SurfaceRotation(right, normal mgl.Vec3) mgl.Quat {
	return LookRotation(right.Cross(normal), normal)
}

// Slerp interpolates between two rotations along the shorter arc.
func Slerp(a, b mgl.Quat, t float32) mgl.Quat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl.QuatSlerp(a, b, t).Normalize()
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
