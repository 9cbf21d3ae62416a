package main

import (
	"context"
	"fmt"

	mgl "github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/two4teezee/limbik/footing"
	"github.com/two4teezee/limbik/ik"
)

// limb is one configured chain: its runtime, the request the driver fills
// in each tick and the running tally.
type limb struct {
	props LimbProperties
	rt    *ik.ChainRuntime
	req   ik.Request
	stats limbStats
}

func (lb *limb) root() mgl.Vec3 {
	p := lb.rt.CurrentPose().Positions
	if len(p) == 0 {
		return mgl.Vec3{}
	}
	return p[0]
}

func (lb *limb) tip() mgl.Vec3 {
	p := lb.rt.CurrentPose().Positions
	if len(p) == 0 {
		return mgl.Vec3{}
	}
	return p[len(p)-1]
}

// System owns the rig, its limbs and whichever driver sets their targets:
// a Lua script, the biped foot placement policy, or nothing (limbs hold
// their last request).
type System struct {
	cfg    *Config
	log    *zap.Logger
	skel   *Skeleton
	ground footing.Ground
	body   footing.Body

	limbs map[string]*limb
	order []*limb

	biped       *footing.Biped
	left, right *limb
	script      *Script

	dt        float32
	time      float32
	tickCount int
}

func newSystem(cfg *Config, skel *Skeleton, log *zap.Logger) (*System, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &System{
		cfg:   cfg,
		log:   log,
		skel:  skel,
		limbs: make(map[string]*limb),
		dt:    1 / float32(cfg.Simulation.TickRate),
	}

	switch cfg.Stage.Ground {
	case "heightfield":
		hf, ok := skel.Ground()
		if !ok {
			return nil, fmt.Errorf("stage wants a heightfield but the rig defines no ground")
		}
		s.ground = hf
	default:
		s.ground = cfg.groundPlane()
	}

	up := vec3(cfg.Simulation.Up).Normalize()
	fwd := vec3(cfg.Simulation.Forward).Normalize()
	s.body = footing.Body{
		Velocity: cfg.velocity(),
		Forward:  fwd,
		Right:    up.Cross(fwd).Normalize(),
		Up:       up,
	}
	if len(skel.roots) > 0 {
		s.body.Position = skel.bones[skel.roots[0]].worldTransform.Col(3).Vec3()
	}

	if len(cfg.Limbs) == 0 {
		return nil, fmt.Errorf("no limbs configured")
	}
	for _, props := range cfg.Limbs {
		rt := ik.NewChainRuntime(cfg.chainConfig(props.Name),
			ik.WithLogger(log.Named("ik")),
			ik.WithSink(skel))
		snap, err := skel.Chain(props.Joints)
		if err != nil {
			return nil, fmt.Errorf("limb %q: %w", props.Name, err)
		}
		if err := rt.Bind(snap); err != nil {
			return nil, fmt.Errorf("limb %q: %w", props.Name, err)
		}
		lb := &limb{props: props, rt: rt}
		// hold the bind pose until a driver says otherwise
		lb.req.Target = lb.tip()
		lb.req.Pole = lb.root().Add(fwd)
		s.limbs[props.Name] = lb
		s.order = append(s.order, lb)
		switch props.Side {
		case "left":
			s.left = lb
		case "right":
			s.right = lb
		}
	}

	if cfg.Simulation.Script != "" {
		script, err := newScript(s, cfg.Simulation.Script)
		if err != nil {
			return nil, err
		}
		s.script = script
	} else if s.left != nil && s.right != nil {
		s.biped = footing.NewBiped(cfg.footingConfig(),
			vec3(s.left.props.RestOffset), vec3(s.right.props.RestOffset),
			vec3(s.left.props.StrafeOffset), vec3(s.right.props.StrafeOffset))
	}
	return s, nil
}

func (s *System) driver() string {
	switch {
	case s.script != nil:
		return "script:" + s.script.name
	case s.biped != nil:
		return "footing"
	}
	return "hold"
}

// reach is how far below the body the ground may be for it to count as
// standing.
func (s *System) reach() float32 {
	var r float32
	for _, lb := range s.order {
		if m := lb.rt.Model(); m != nil && m.TotalReach() > r {
			r = m.TotalReach()
		}
	}
	return r + float32(s.cfg.Footing.StepHeight)
}

// step advances the simulation by one fixed tick.
func (s *System) step() error {
	if delta := s.body.Velocity.Mul(s.dt); delta != (mgl.Vec3{}) {
		s.skel.Translate(delta)
		s.body.Position = s.body.Position.Add(delta)
		for _, lb := range s.order {
			if p, ok := s.skel.WorldPosition(lb.props.Joints[0]); ok {
				lb.rt.SetRoot(p)
			}
		}
	}
	s.body.Grounded = footing.Grounded(s.ground, s.body, mgl.Vec3{}, s.reach())

	switch {
	case s.script != nil:
		if err := s.script.Tick(s.time, s.dt); err != nil {
			return fmt.Errorf("tick %d: %w", s.tickCount, err)
		}
	case s.biped != nil:
		l, r := s.biped.Step(s.ground, s.body, s.left.root(), s.right.root(), s.left.tip(), s.right.tip(), s.dt)
		s.place(s.left, l)
		s.place(s.right, r)
	}

	for _, lb := range s.order {
		lb.rt.Solve(lb.req)
		lb.stats.record(lb.rt.LastResult())
	}
	s.tickCount++
	s.time += s.dt
	return nil
}

func (s *System) place(lb *limb, p footing.Placement) {
	lb.req.Target = p.Target
	lb.req.Pole = p.Pole
	lb.req.SurfaceNormal = p.Normal
	lb.req.Right = s.body.Right
}

// run steps the simulation ticks times or until ctx is done.
func (s *System) run(ctx context.Context, ticks int) error {
	s.log.Info("simulation started",
		zap.Int("ticks", ticks),
		zap.Int("limbs", len(s.order)),
		zap.String("driver", s.driver()),
		zap.Float32("dt", s.dt))
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.step(); err != nil {
			return err
		}
	}
	for _, lb := range s.order {
		s.log.Info("limb summary",
			zap.String("limb", lb.props.Name),
			zap.Int("ticks", lb.stats.Ticks),
			zap.Int("stretched", lb.stats.Stretched),
			zap.Int("converged", lb.stats.Converged),
			zap.Float64("maxError", lb.stats.MaxError))
	}
	return nil
}

func (s *System) shutdown() {
	if s.script != nil {
		s.script.Close()
		s.script = nil
	}
}
