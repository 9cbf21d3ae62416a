package ik

// Params are the solver tuning knobs. They are fixed for the duration of a
// solve.
type Params struct {
	// Delta is the squared end-to-target distance below which iteration
	// stops.
	Delta float32
	// MaxIterations caps the backward/forward iterations per solve.
	MaxIterations int
	// AttractionStrength scales the pull of interior joints toward the pole,
	// in units of the joint's segment length.
	AttractionStrength float32
	// StretchMargin is added to the chain's total reach before the solver
	// switches to stretch placement.
	StretchMargin float32
	// ClampEndStep moves the end joint toward the target by at most the last
	// segment length per backward pass instead of snapping onto it.
	ClampEndStep bool
}

const (
	DefaultDelta              = 0.001 * 0.001
	DefaultMaxIterations      = 5
	DefaultAttractionStrength = 5
	DefaultStretchMargin      = 0.125
	DefaultFloorOffset        = 0.125
)

func DefaultParams() Params {
	return Params{
		Delta:              DefaultDelta,
		MaxIterations:      DefaultMaxIterations,
		AttractionStrength: DefaultAttractionStrength,
		StretchMargin:      DefaultStretchMargin,
	}
}

// Normalize returns p with out of range values clamped.
func (p Params) Normalize() Params {
	if p.MaxIterations < 1 {
		p.MaxIterations = 1
	}
	if p.Delta < 0 {
		p.Delta = 0
	}
	if p.AttractionStrength < 0 {
		p.AttractionStrength = 0
	}
	if p.StretchMargin < 0 {
		p.StretchMargin = 0
	}
	return p
}
