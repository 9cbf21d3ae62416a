package ik

import (
	mgl "github.com/go-gl/mathgl/mgl32"
)

// MinJoints is the shortest chain the solver accepts: a root and an end.
const MinJoints = 2

// Joint is one member of a chain. Length is the rigid distance to the child
// joint measured at bind time, zero for the end joint.
type Joint struct {
	Index        int
	BindPosition mgl.Vec3
	Length       float32
	IsRoot       bool
	IsEnd        bool
}

// ChainModel is the immutable description of a chain, root to end.
type ChainModel struct {
	joints      []Joint
	length      float32
	floorOffset float32
}

// NewChainModel binds a chain from its bind pose positions, ordered root to
// end. Segment lengths are measured once here and never recomputed.
func NewChainModel(bind []mgl.Vec3, floorOffset float32) (*ChainModel, error) {
	if len(bind) < MinJoints {
		return nil, &InvalidChainError{Joints: len(bind), Segment: -1, Reason: "need at least 2 joints"}
	}
	m := &ChainModel{
		joints:      make([]Joint, len(bind)),
		floorOffset: floorOffset,
	}
	for i, p := range bind {
		j := Joint{Index: i, BindPosition: p, IsRoot: i == 0, IsEnd: i == len(bind)-1}
		if !j.IsEnd {
			j.Length = p.Sub(bind[i+1]).Len()
			if j.Length <= epsilon {
				return nil, &InvalidChainError{Joints: len(bind), Segment: i, Reason: "zero-length segment"}
			}
			m.length += j.Length
		}
		m.joints[i] = j
	}
	return m, nil
}

// Len returns the number of joints.
func (m *ChainModel) Len() int {
	return len(m.joints)
}

func (m *ChainModel) Joint(i int) Joint {
	return m.joints[i]
}

// SegmentLength returns the distance between joint i and joint i+1.
func (m *ChainModel) SegmentLength(i int) float32 {
	return m.joints[i].Length
}

// Length is the sum of all segment lengths, the distance the end reaches
// when the chain is fully straightened.
func (m *ChainModel) Length() float32 {
	return m.length
}

// TotalReach is Length plus the floor offset margin.
func (m *ChainModel) TotalReach() float32 {
	return m.length + m.floorOffset
}

func (m *ChainModel) FloorOffset() float32 {
	return m.floorOffset
}

// BindPositions returns a copy of the bind pose.
func (m *ChainModel) BindPositions() []mgl.Vec3 {
	out := make([]mgl.Vec3, len(m.joints))
	for i, j := range m.joints {
		out[i] = j.BindPosition
	}
	return out
}
