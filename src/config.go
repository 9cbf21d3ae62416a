package main

import (
	_ "embed" // Support for go:embed resources
	"fmt"
	"os"
	"strings"

	mgl "github.com/go-gl/mathgl/mgl32"
	"gopkg.in/ini.v1"

	"github.com/two4teezee/limbik/footing"
	"github.com/two4teezee/limbik/ik"
)

//go:embed resources/defaultConfig.ini
var defaultConfig []byte

const limbSectionPrefix = "Limb."

// LimbProperties describes one [Limb.<name>] section.
type LimbProperties struct {
	Name         string    `ini:"-"`
	Joints       []string  `ini:"Joints" delim:","`
	Side         string    `ini:"Side"`
	RestOffset   []float64 `ini:"RestOffset" delim:","`
	StrafeOffset []float64 `ini:"StrafeOffset" delim:","`
	Disabled     bool      `ini:"Disabled"`
}

// Config represents the top-level config structure.
type Config struct {
	Def     string
	IniFile *ini.File
	Solver  struct {
		Delta              float64 `ini:"Delta"`
		MaxIterations      int     `ini:"MaxIterations"`
		AttractionStrength float64 `ini:"AttractionStrength"`
		StretchMargin      float64 `ini:"StretchMargin"`
		FloorOffset        float64 `ini:"FloorOffset"`
		ClampEndStep       bool    `ini:"ClampEndStep"`
	}
	Orientation struct {
		Offset    []float64 `ini:"Offset" delim:","`
		Up        []float64 `ini:"Up" delim:","`
		ChainUp   []float64 `ini:"ChainUp" delim:","`
		FootBlend float64   `ini:"FootBlend"`
	}
	Footing struct {
		LerpSpeed       float64   `ini:"LerpSpeed"`
		MaxFootDistance float64   `ini:"MaxFootDistance"`
		MoveThreshold   float64   `ini:"MoveThreshold"`
		StrafeThreshold float64   `ini:"StrafeThreshold"`
		FloorOffset     []float64 `ini:"FloorOffset" delim:","`
		RayLength       float64   `ini:"RayLength"`
		StepHeight      float64   `ini:"StepHeight"`
		PoleForward     float64   `ini:"PoleForward"`
		PoleHeight      float64   `ini:"PoleHeight"`
	}
	Simulation struct {
		TickRate int       `ini:"TickRate"`
		Ticks    int       `ini:"Ticks"`
		Velocity []float64 `ini:"Velocity" delim:","`
		Forward  []float64 `ini:"Forward" delim:","`
		Up       []float64 `ini:"Up" delim:","`
		Script   string    `ini:"Script"`
		Rig      string    `ini:"Rig"`
		Stats    string    `ini:"Stats"`
		Export   string    `ini:"Export"`
	}
	Stage struct {
		Ground string    `ini:"Ground"`
		Height float64   `ini:"Height"`
		Normal []float64 `ini:"Normal" delim:","`
	}
	Limbs []LimbProperties
}

// Loads and parses the INI file into a Config struct. The embedded defaults
// are always loaded first; def is layered on top when it exists and the
// normalized result is written back to it.
func loadConfig(def string) (*Config, error) {
	options := ini.LoadOptions{
		Insensitive:                false,
		IgnoreInlineComment:        false,
		SkipUnrecognizableLines:    true,
		AllowShadows:               false,
		AllowPythonMultilineValues: false,
	}

	var iniFile *ini.File
	var err error
	if _, statErr := os.Stat(def); def == "" || statErr != nil {
		iniFile, err = ini.LoadSources(options, defaultConfig)
	} else {
		iniFile, err = ini.LoadSources(options, defaultConfig, def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %v", err)
	}

	c, err := parseConfig(iniFile)
	if err != nil {
		return nil, err
	}
	c.Def = def
	if def != "" {
		if err := c.Save(def); err != nil {
			return nil, fmt.Errorf("failed to save config %q: %w", def, err)
		}
	}
	return c, nil
}

func parseConfig(iniFile *ini.File) (*Config, error) {
	c := &Config{IniFile: iniFile}
	sections := []struct {
		name string
		dst  interface{}
	}{
		{"Solver", &c.Solver},
		{"Orientation", &c.Orientation},
		{"Footing", &c.Footing},
		{"Simulation", &c.Simulation},
		{"Stage", &c.Stage},
	}
	for _, s := range sections {
		if err := iniFile.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", s.name, err)
		}
	}

	for _, section := range iniFile.Sections() {
		name, ok := strings.CutPrefix(section.Name(), limbSectionPrefix)
		if !ok || name == "" {
			continue
		}
		lp := LimbProperties{Name: name}
		if err := section.MapTo(&lp); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", section.Name(), err)
		}
		lp.Name = name
		if lp.Disabled {
			continue
		}
		c.Limbs = append(c.Limbs, lp)
	}

	c.normalize()
	return c, nil
}

// Normalize values
func (c *Config) normalize() {
	c.Solver.MaxIterations = Clamp(c.Solver.MaxIterations, 1, 1000)
	c.SetValueUpdate("Solver.MaxIterations", c.Solver.MaxIterations)
	for _, f := range []struct {
		key string
		v   *float64
	}{
		{"Solver.Delta", &c.Solver.Delta},
		{"Solver.AttractionStrength", &c.Solver.AttractionStrength},
		{"Solver.StretchMargin", &c.Solver.StretchMargin},
		{"Solver.FloorOffset", &c.Solver.FloorOffset},
		{"Footing.LerpSpeed", &c.Footing.LerpSpeed},
		{"Footing.MaxFootDistance", &c.Footing.MaxFootDistance},
		{"Footing.MoveThreshold", &c.Footing.MoveThreshold},
		{"Footing.RayLength", &c.Footing.RayLength},
		{"Footing.StepHeight", &c.Footing.StepHeight},
	} {
		if *f.v < 0 {
			*f.v = 0
			c.SetValueUpdate(f.key, 0)
		}
	}
	c.Orientation.FootBlend = ClampF(c.Orientation.FootBlend, 0, 1)
	c.SetValueUpdate("Orientation.FootBlend", c.Orientation.FootBlend)
	c.Footing.StrafeThreshold = ClampF(c.Footing.StrafeThreshold, 0, 1)
	c.SetValueUpdate("Footing.StrafeThreshold", c.Footing.StrafeThreshold)

	c.Simulation.TickRate = Clamp(c.Simulation.TickRate, 1, 840)
	c.SetValueUpdate("Simulation.TickRate", c.Simulation.TickRate)
	if c.Simulation.Ticks < 0 {
		c.Simulation.Ticks = 0
		c.SetValueUpdate("Simulation.Ticks", 0)
	}

	vectors := []struct {
		key       string
		v         *[]float64
		def       []float64
		direction bool
	}{
		{"Orientation.Offset", &c.Orientation.Offset, []float64{-90, 0, 0}, false},
		{"Orientation.Up", &c.Orientation.Up, []float64{0, 0, 1}, true},
		{"Orientation.ChainUp", &c.Orientation.ChainUp, []float64{0, 1, 0}, true},
		{"Footing.FloorOffset", &c.Footing.FloorOffset, []float64{0, 0, 0}, false},
		{"Simulation.Velocity", &c.Simulation.Velocity, []float64{0, 0, 0}, false},
		{"Simulation.Forward", &c.Simulation.Forward, []float64{0, 0, 1}, true},
		{"Simulation.Up", &c.Simulation.Up, []float64{0, 1, 0}, true},
		{"Stage.Normal", &c.Stage.Normal, []float64{0, 1, 0}, true},
	}
	for _, v := range vectors {
		// directions must not be zero
		if len(*v.v) != 3 || (v.direction && vec3(*v.v).Len() == 0) {
			*v.v = v.def
			c.SetValueUpdate(v.key, formatVec(v.def))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Stage.Ground)) {
	case "plane", "heightfield":
		c.Stage.Ground = strings.ToLower(strings.TrimSpace(c.Stage.Ground))
	default:
		c.Stage.Ground = "plane"
		c.SetValueUpdate("Stage.Ground", "plane")
	}

	for i := range c.Limbs {
		l := &c.Limbs[i]
		joints := l.Joints[:0]
		for _, j := range l.Joints {
			if j = strings.TrimSpace(j); j != "" {
				joints = append(joints, j)
			}
		}
		l.Joints = joints
		l.Side = strings.ToLower(strings.TrimSpace(l.Side))
		if len(l.RestOffset) != 3 {
			l.RestOffset = []float64{0, 0, 0}
		}
		if len(l.StrafeOffset) != 3 {
			l.StrafeOffset = []float64{0, 0, 0}
		}
	}
}

// SetValueUpdate writes a normalized value back into the IniFile.
// Queries are "Section.Key".
func (c *Config) SetValueUpdate(query string, value interface{}) {
	if c.IniFile == nil {
		return
	}
	section, key, ok := strings.Cut(query, ".")
	if !ok {
		return
	}
	c.IniFile.Section(section).Key(key).SetValue(fmt.Sprint(value))
}

// Save writes the current IniFile to disk, preserving comments and syntax.
func (c *Config) Save(file string) error {
	return SaveINI(c.IniFile, file)
}

// Limb returns the properties of the named limb.
func (c *Config) Limb(name string) (LimbProperties, bool) {
	for _, l := range c.Limbs {
		if l.Name == name {
			return l, true
		}
	}
	return LimbProperties{}, false
}

func (c *Config) solverParams() ik.Params {
	return ik.Params{
		Delta:              float32(c.Solver.Delta),
		MaxIterations:      c.Solver.MaxIterations,
		AttractionStrength: float32(c.Solver.AttractionStrength),
		StretchMargin:      float32(c.Solver.StretchMargin),
		ClampEndStep:       c.Solver.ClampEndStep,
	}
}

func (c *Config) chainConfig(name string) ik.Config {
	o := vec3(c.Orientation.Offset)
	return ik.Config{
		Name:        name,
		Params:      c.solverParams(),
		FloorOffset: float32(c.Solver.FloorOffset),
		Offset:      ik.EulerOffset(o[0], o[1], o[2]),
		Up:          vec3(c.Orientation.Up),
		ChainUp:     vec3(c.Orientation.ChainUp),
		FootBlend:   float32(c.Orientation.FootBlend),
	}
}

func (c *Config) footingConfig() footing.Config {
	return footing.Config{
		LerpSpeed:       float32(c.Footing.LerpSpeed),
		MaxFootDistance: float32(c.Footing.MaxFootDistance),
		MoveThreshold:   float32(c.Footing.MoveThreshold),
		StrafeThreshold: float32(c.Footing.StrafeThreshold),
		FloorOffset:     vec3(c.Footing.FloorOffset),
		RayLength:       float32(c.Footing.RayLength),
		StepHeight:      float32(c.Footing.StepHeight),
		PoleForward:     float32(c.Footing.PoleForward),
		PoleHeight:      float32(c.Footing.PoleHeight),
	}
}

func (c *Config) groundPlane() footing.Plane {
	n := vec3(c.Stage.Normal)
	return footing.Plane{Point: n.Normalize().Mul(float32(c.Stage.Height)), Normal: n}
}

func (c *Config) velocity() mgl.Vec3 { return vec3(c.Simulation.Velocity) }

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
