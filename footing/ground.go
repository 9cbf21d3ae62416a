// Package footing picks per-tick IK targets for feet from ground queries:
// idle resting spots, velocity-predictive steps, smoothing and surface
// normals.
package footing

import (
	"fmt"
	"math"

	mgl "github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-6

// Hit is a ray intersection with the ground.
type Hit struct {
	Point    mgl.Vec3
	Normal   mgl.Vec3
	Distance float32
}

// Ground answers ray casts. The direction need not be normalized.
type Ground interface {
	Raycast(origin, dir mgl.Vec3, maxDist float32) (Hit, bool)
}

// Plane is an infinite flat ground.
type Plane struct {
	Point  mgl.Vec3
	Normal mgl.Vec3
}

func (p Plane) Raycast(origin, dir mgl.Vec3, maxDist float32) (Hit, bool) {
	n, ok := unit(p.Normal)
	if !ok {
		return Hit{}, false
	}
	d, ok := unit(dir)
	if !ok {
		return Hit{}, false
	}
	denom := n.Dot(d)
	if denom > -epsilon && denom < epsilon {
		return Hit{}, false
	}
	t := n.Dot(p.Point.Sub(origin)) / denom
	if t < 0 || t > maxDist {
		return Hit{}, false
	}
	if denom > 0 {
		n = n.Mul(-1)
	}
	return Hit{Point: origin.Add(d.Mul(t)), Normal: n, Distance: t}, true
}

// Heightfield is a regular grid of heights along +Y, rows along Z and
// columns along X, starting at Origin. Rays that leave the grid miss.
type Heightfield struct {
	Origin  mgl.Vec3
	Cell    float32
	Heights [][]float32
}

// Validate checks that the grid is at least 2x2 and rectangular.
func (h *Heightfield) Validate() error {
	if h.Cell <= 0 {
		return fmt.Errorf("ground cell size %g must be positive", h.Cell)
	}
	if len(h.Heights) < 2 {
		return fmt.Errorf("ground has %d rows, want at least 2", len(h.Heights))
	}
	want := len(h.Heights[0])
	if want < 2 {
		return fmt.Errorf("ground row 0 has %d heights, want at least 2", want)
	}
	for i, row := range h.Heights {
		if len(row) != want {
			return fmt.Errorf("ground row %d has %d heights, want %d", i, len(row), want)
		}
	}
	return nil
}

// Height returns the bilinear height at (x, z). Cells touching a short row
// have no height.
func (h *Heightfield) Height(x, z float32) (float32, bool) {
	if h.Cell <= 0 || len(h.Heights) < 2 || len(h.Heights[0]) < 2 {
		return 0, false
	}
	fx := (x - h.Origin.X()) / h.Cell
	fz := (z - h.Origin.Z()) / h.Cell
	maxX := float32(len(h.Heights[0]) - 1)
	maxZ := float32(len(h.Heights) - 1)
	if fx < 0 || fz < 0 || fx > maxX || fz > maxZ {
		return 0, false
	}
	ix := int(fx)
	iz := int(fz)
	if ix >= int(maxX) {
		ix = int(maxX) - 1
	}
	if iz >= int(maxZ) {
		iz = int(maxZ) - 1
	}
	if len(h.Heights[iz]) < ix+2 || len(h.Heights[iz+1]) < ix+2 {
		return 0, false
	}
	tx := fx - float32(ix)
	tz := fz - float32(iz)
	h00 := h.Heights[iz][ix]
	h10 := h.Heights[iz][ix+1]
	h01 := h.Heights[iz+1][ix]
	h11 := h.Heights[iz+1][ix+1]
	top := h00 + (h10-h00)*tx
	bottom := h01 + (h11-h01)*tx
	return h.Origin.Y() + top + (bottom-top)*tz, true
}

// NormalAt estimates the surface normal at (x, z) with central differences.
func (h *Heightfield) NormalAt(x, z float32) mgl.Vec3 {
	e := h.Cell * 0.5
	sample := func(x, z, fallback float32) float32 {
		if y, ok := h.Height(x, z); ok {
			return y
		}
		return fallback
	}
	c := sample(x, z, 0)
	dx := sample(x+e, z, c) - sample(x-e, z, c)
	dz := sample(x, z+e, c) - sample(x, z-e, c)
	n, ok := unit(mgl.Vec3{-dx, 2 * e, -dz})
	if !ok {
		return mgl.Vec3{0, 1, 0}
	}
	return n
}

func (h *Heightfield) Raycast(origin, dir mgl.Vec3, maxDist float32) (Hit, bool) {
	d, ok := unit(dir)
	if !ok || h.Cell <= 0 {
		return Hit{}, false
	}
	step := h.Cell * 0.25
	above := func(t float32) (bool, bool) {
		p := origin.Add(d.Mul(t))
		y, ok := h.Height(p.X(), p.Z())
		if !ok {
			return false, false
		}
		return p.Y() > y, true
	}
	prev := float32(0)
	wasAbove, ok := above(0)
	if ok && !wasAbove {
		return Hit{}, false
	}
	for t := step; ; t += step {
		if t > maxDist {
			t = maxDist
		}
		isAbove, inside := above(t)
		if inside && wasAbove && !isAbove {
			// refine the crossing between prev and t
			lo, hi := prev, t
			for i := 0; i < 20; i++ {
				mid := (lo + hi) * 0.5
				if a, _ := above(mid); a {
					lo = mid
				} else {
					hi = mid
				}
			}
			p := origin.Add(d.Mul(hi))
			y, _ := h.Height(p.X(), p.Z())
			p[1] = y
			return Hit{Point: p, Normal: h.NormalAt(p.X(), p.Z()), Distance: hi}, true
		}
		if inside {
			wasAbove = isAbove
		} else {
			wasAbove = true
		}
		prev = t
		if t >= maxDist {
			return Hit{}, false
		}
	}
}

func unit(v mgl.Vec3) (mgl.Vec3, bool) {
	l := v.Len()
	if l <= epsilon {
		return mgl.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Slerp interpolates between two vectors by angle, with the magnitude
// interpolated linearly.
func Slerp(a, b mgl.Vec3, t float32) mgl.Vec3 {
	t = clamp01(t)
	la, lb := a.Len(), b.Len()
	if la <= epsilon || lb <= epsilon {
		return a.Add(b.Sub(a).Mul(t))
	}
	na, nb := a.Mul(1/la), b.Mul(1/lb)
	dot := mgl.Clamp(na.Dot(nb), -1, 1)
	theta := float32(math.Acos(float64(dot))) * t
	if theta <= epsilon {
		return a.Add(b.Sub(a).Mul(t))
	}
	rel, ok := unit(nb.Sub(na.Mul(dot)))
	if !ok {
		// opposite directions: turn through any perpendicular
		rel, ok = unit(na.Cross(mgl.Vec3{0, 1, 0}))
		if !ok {
			rel, _ = unit(na.Cross(mgl.Vec3{1, 0, 0}))
		}
	}
	s, c := math.Sincos(float64(theta))
	dir := na.Mul(float32(c)).Add(rel.Mul(float32(s)))
	return dir.Mul(la + (lb-la)*t)
}
