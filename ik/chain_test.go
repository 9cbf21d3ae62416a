package ik

import (
	"errors"
	"testing"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legBind() []mgl.Vec3 {
	return []mgl.Vec3{{0, 0, 0}, {0, -0.5, 0}, {0, -1, 0}}
}

func TestNewChainModel(t *testing.T) {
	m, err := NewChainModel(legBind(), 0.125)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Len())
	assert.InDelta(t, 0.5, m.SegmentLength(0), 1e-6)
	assert.InDelta(t, 0.5, m.SegmentLength(1), 1e-6)
	assert.InDelta(t, 1.0, m.Length(), 1e-6)
	assert.InDelta(t, 1.125, m.TotalReach(), 1e-6)
	assert.InDelta(t, 0.125, m.FloorOffset(), 1e-6)

	assert.True(t, m.Joint(0).IsRoot)
	assert.False(t, m.Joint(0).IsEnd)
	assert.True(t, m.Joint(2).IsEnd)
	assert.Zero(t, m.Joint(2).Length)
	assert.Equal(t, 1, m.Joint(1).Index)
}

func TestNewChainModelTwoJoints(t *testing.T) {
	m, err := NewChainModel([]mgl.Vec3{{1, 1, 1}, {1, 1, 3}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.InDelta(t, 2.0, m.TotalReach(), 1e-6)
}

func TestNewChainModelInvalid(t *testing.T) {
	tests := []struct {
		name    string
		bind    []mgl.Vec3
		segment int
	}{
		{"empty", nil, -1},
		{"single joint", []mgl.Vec3{{0, 0, 0}}, -1},
		{"coincident root", []mgl.Vec3{{0, 0, 0}, {0, 0, 0}, {0, -1, 0}}, 0},
		{"coincident end", []mgl.Vec3{{0, 0, 0}, {0, -1, 0}, {0, -1, 0}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewChainModel(tt.bind, 0.125)
			assert.Nil(t, m)
			require.Error(t, err)

			var chainErr *InvalidChainError
			require.True(t, errors.As(err, &chainErr))
			assert.Equal(t, tt.segment, chainErr.Segment)
			assert.Equal(t, len(tt.bind), chainErr.Joints)
			assert.True(t, errors.Is(err, ErrInvalidChain))
		})
	}
}

func TestChainModelBindPositionsIsCopy(t *testing.T) {
	bind := legBind()
	m, err := NewChainModel(bind, 0)
	require.NoError(t, err)

	got := m.BindPositions()
	got[1] = mgl.Vec3{9, 9, 9}
	bind[2] = mgl.Vec3{7, 7, 7}

	assert.Equal(t, mgl.Vec3{0, -0.5, 0}, m.Joint(1).BindPosition)
	assert.Equal(t, mgl.Vec3{0, -1, 0}, m.BindPositions()[2])
}
