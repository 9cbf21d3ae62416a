package ik

import (
	"fmt"

	mgl "github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

type State int

const (
	Unbound State = iota
	Bound
	Solving
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Solving:
		return "solving"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Snapshot is the bind-time view of a chain handed over by the skeleton:
// joint positions root to end, and optionally their names.
type Snapshot struct {
	Names     []string
	Positions []mgl.Vec3
}

// Pose is a committed chain pose, root first.
type Pose struct {
	Positions    []mgl.Vec3
	Orientations []mgl.Quat
	Mode         Mode
}

func (p Pose) Clone() Pose {
	return Pose{
		Positions:    append([]mgl.Vec3(nil), p.Positions...),
		Orientations: append([]mgl.Quat(nil), p.Orientations...),
		Mode:         p.Mode,
	}
}

// PoseSink receives every pose a runtime commits, in chain order.
type PoseSink interface {
	CommitPose(chain string, joints []string, pose Pose)
}

// Request is the per-tick input. Target and Pole are world positions and
// are always used as given. For Up, SurfaceNormal and Right a zero vector
// means "not supplied".
type Request struct {
	Target mgl.Vec3
	Pole   mgl.Vec3
	// Up overrides Config.Up as the look-rotation reference.
	Up mgl.Vec3
	// SurfaceNormal, when set, turns the end joint toward the ground slope.
	SurfaceNormal mgl.Vec3
	// Right is the body's right axis used with SurfaceNormal.
	Right mgl.Vec3
}

// Config holds everything a runtime needs besides the skeleton. It is fixed
// at construction.
type Config struct {
	Name        string
	Params      Params
	FloorOffset float32
	// Offset is the rig's bone axis correction.
	Offset mgl.Quat
	// Up is the default look-rotation reference, ChainUp the limb's own up
	// used to disambiguate the stretched root.
	Up      mgl.Vec3
	ChainUp mgl.Vec3
	// FootBlend is the per-tick slerp weight toward the surface rotation;
	// zero disables surface alignment.
	FootBlend float32
}

func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		Params:      DefaultParams(),
		FloorOffset: DefaultFloorOffset,
		Offset:      EulerOffset(-90, 0, 0),
		Up:          axisZ,
		ChainUp:     axisY,
		FootBlend:   0.2,
	}
}

type Option func(*ChainRuntime)

func WithLogger(l *zap.Logger) Option {
	return func(r *ChainRuntime) {
		if l != nil {
			r.log = l
		}
	}
}

func WithSink(s PoseSink) Option {
	return func(r *ChainRuntime) {
		r.sink = s
	}
}

// ChainRuntime owns one chain model and its pose buffer across ticks. It is
// not safe for concurrent use, but separate runtimes share nothing.
type ChainRuntime struct {
	cfg   Config
	log   *zap.Logger
	sink  PoseSink
	state State

	model        *ChainModel
	names        []string
	positions    []mgl.Vec3
	orientations []mgl.Quat
	last         Result
	tip          mgl.Quat
	tipSet       bool
}

func NewChainRuntime(cfg Config, opts ...Option) *ChainRuntime {
	cfg.Params = cfg.Params.Normalize()
	if cfg.Offset == (mgl.Quat{}) {
		cfg.Offset = mgl.QuatIdent()
	}
	if cfg.FootBlend < 0 {
		cfg.FootBlend = 0
	} else if cfg.FootBlend > 1 {
		cfg.FootBlend = 1
	}
	r := &ChainRuntime{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind builds the chain model from a skeleton snapshot and resets the pose
// to it. On failure the runtime keeps its previous binding.
func (r *ChainRuntime) Bind(s Snapshot) error {
	model, err := NewChainModel(s.Positions, r.cfg.FloorOffset)
	if err != nil {
		r.log.Warn("chain bind failed", zap.String("chain", r.cfg.Name), zap.Error(err))
		return fmt.Errorf("bind %q: %w", r.cfg.Name, err)
	}
	names := make([]string, model.Len())
	for i := range names {
		if i < len(s.Names) && s.Names[i] != "" {
			names[i] = s.Names[i]
		} else {
			names[i] = fmt.Sprintf("joint%d", i)
		}
	}
	r.model = model
	r.names = names
	r.positions = model.BindPositions()
	r.orientations = Reconstruct(r.positions, r.cfg.Up, r.cfg.Offset)
	r.last = Result{}
	r.tipSet = false
	r.state = Bound
	r.log.Debug("chain bound",
		zap.String("chain", r.cfg.Name),
		zap.Int("joints", model.Len()),
		zap.Float32("length", model.Length()),
		zap.Float32("reach", model.TotalReach()))
	return nil
}

// SetRoot moves the whole chain so its root sits at p. Bone lengths and the
// current bend are kept.
func (r *ChainRuntime) SetRoot(p mgl.Vec3) {
	if r.state == Unbound {
		return
	}
	d := p.Sub(r.positions[0])
	for i := range r.positions {
		r.positions[i] = r.positions[i].Add(d)
	}
}

// Solve runs one tick and commits the resulting pose. It never fails; an
// unbound runtime returns an empty pose.
func (r *ChainRuntime) Solve(req Request) Pose {
	if r.state == Unbound {
		return Pose{}
	}
	up := req.Up
	if _, ok := direction(up); !ok {
		up = r.cfg.Up
	}

	res := SolveInPlace(r.model, r.positions, req.Target, req.Pole, r.cfg.Params)
	if r.state == Solving && res.Mode != r.last.Mode {
		r.log.Debug("chain mode changed",
			zap.String("chain", r.cfg.Name),
			zap.Stringer("from", r.last.Mode),
			zap.Stringer("to", res.Mode))
	}

	if res.Mode == Stretched {
		r.orientations = ReconstructStretched(r.positions, req.Target, up, r.cfg.ChainUp, r.cfg.Offset)
	} else {
		r.orientations = Reconstruct(r.positions, up, r.cfg.Offset)
	}
	r.alignEnd(req)

	r.last = res
	r.state = Solving
	pose := r.CurrentPose()
	if r.sink != nil {
		r.sink.CommitPose(r.cfg.Name, r.names, pose.Clone())
	}
	return pose
}

func (r *ChainRuntime) alignEnd(req Request) {
	end := len(r.orientations) - 1
	normal, ok := direction(req.SurfaceNormal)
	if !ok || r.cfg.FootBlend == 0 {
		r.tipSet = false
		return
	}
	right, ok := direction(req.Right)
	if !ok {
		right = r.orientations[end].Rotate(axisX)
	}
	goal := SurfaceRotation(right, normal)
	from := r.orientations[end]
	if r.tipSet {
		from = r.tip
	}
	r.tip = Slerp(from, goal, r.cfg.FootBlend)
	r.tipSet = true
	r.orientations[end] = r.tip
}

// CurrentPose returns a copy of the committed pose.
func (r *ChainRuntime) CurrentPose() Pose {
	if r.state == Unbound {
		return Pose{}
	}
	return Pose{Positions: r.positions, Orientations: r.orientations, Mode: r.last.Mode}.Clone()
}

// LastResult returns the solver result of the latest tick.
func (r *ChainRuntime) LastResult() Result {
	res := r.last
	res.Positions = append([]mgl.Vec3(nil), res.Positions...)
	return res
}

func (r *ChainRuntime) State() State {
	return r.state
}

func (r *ChainRuntime) Model() *ChainModel {
	return r.model
}

func (r *ChainRuntime) Name() string {
	return r.cfg.Name
}

// Joints returns the bound joint names, root first.
func (r *ChainRuntime) Joints() []string {
	return append([]string(nil), r.names...)
}
