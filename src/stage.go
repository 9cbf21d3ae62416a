package main

import (
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"gopkg.in/yaml.v3"

	"github.com/two4teezee/limbik/footing"
	"github.com/two4teezee/limbik/ik"
)

//go:embed resources/biped.yaml
var builtinRig []byte

// Bone is one transform node of the rig. Translation, Rotation and Scale
// are relative to the parent.
type Bone struct {
	Name        string
	Parent      int
	Children    []int
	Translation mgl.Vec3
	Rotation    mgl.Quat
	Scale       mgl.Vec3

	// node is the glTF node index, -1 for bones that did not come from a
	// document.
	node           int
	worldTransform mgl.Mat4
}

// Skeleton is a rig hierarchy. It receives solved chain poses and keeps the
// world transforms of every bone current.
type Skeleton struct {
	bones  []*Bone
	byName map[string]int
	roots  []int
	doc    *gltf.Document
	ground *footing.Heightfield
}

func newSkeleton(bones []*Bone) (*Skeleton, error) {
	s := &Skeleton{bones: bones, byName: make(map[string]int, len(bones))}
	for i, b := range bones {
		if _, dup := s.byName[b.Name]; dup {
			return nil, fmt.Errorf("duplicate bone %q", b.Name)
		}
		s.byName[b.Name] = i
		if b.Parent < 0 {
			s.roots = append(s.roots, i)
		} else if b.Parent >= len(bones) {
			return nil, fmt.Errorf("bone %q: parent %d out of range", b.Name, b.Parent)
		}
	}
	// every bone must hang off a root, otherwise the parents form a cycle
	reached := 0
	stack := append([]int(nil), s.roots...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		stack = append(stack, bones[i].Children...)
	}
	if reached != len(bones) {
		return nil, fmt.Errorf("bone hierarchy has a cycle")
	}
	s.update()
	return s, nil
}

func (b *Bone) getLocalTransform() (mat mgl.Mat4) {
	t := b.Translation
	mat = mgl.Translate3D(t[0], t[1], t[2])
	mat = mat.Mul4(b.Rotation.Mat4())
	mat = mat.Mul4(mgl.Scale3D(b.Scale[0], b.Scale[1], b.Scale[2]))
	return
}

func (s *Skeleton) calculateWorldTransform(i int, parentTransform mgl.Mat4) {
	b := s.bones[i]
	b.worldTransform = parentTransform.Mul4(b.getLocalTransform())
	for _, c := range b.Children {
		s.calculateWorldTransform(c, b.worldTransform)
	}
}

func (s *Skeleton) update() {
	for _, r := range s.roots {
		s.calculateWorldTransform(r, mgl.Ident4())
	}
}

func (s *Skeleton) parentTransform(i int) mgl.Mat4 {
	if p := s.bones[i].Parent; p >= 0 {
		return s.bones[p].worldTransform
	}
	return mgl.Ident4()
}

// rotationOf strips scale from a transform and returns its rotation.
func rotationOf(m mgl.Mat4) mgl.Quat {
	scale := [3]float32{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	for i := range scale {
		if scale[i] == 0 {
			return mgl.QuatIdent()
		}
	}
	mat := mgl.Ident4()
	for i := 0; i < 3; i++ {
		mat[i] = m[i] / scale[0]
		mat[i+4] = m[i+4] / scale[1]
		mat[i+8] = m[i+8] / scale[2]
	}
	return mgl.Mat4ToQuat(mat).Normalize()
}

func (s *Skeleton) Len() int { return len(s.bones) }

func (s *Skeleton) Bone(name string) (*Bone, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.bones[i], true
}

// WorldPosition returns a bone's origin in world space.
func (s *Skeleton) WorldPosition(name string) (mgl.Vec3, bool) {
	b, ok := s.Bone(name)
	if !ok {
		return mgl.Vec3{}, false
	}
	return b.worldTransform.Col(3).Vec3(), true
}

// WorldRotation returns a bone's rotation in world space.
func (s *Skeleton) WorldRotation(name string) (mgl.Quat, bool) {
	b, ok := s.Bone(name)
	if !ok {
		return mgl.QuatIdent(), false
	}
	return rotationOf(b.worldTransform), true
}

// Chain snapshots the named bones, root first, for binding.
func (s *Skeleton) Chain(names []string) (ik.Snapshot, error) {
	snap := ik.Snapshot{Names: append([]string(nil), names...)}
	for _, n := range names {
		p, ok := s.WorldPosition(n)
		if !ok {
			return ik.Snapshot{}, fmt.Errorf("unknown joint %q", n)
		}
		snap.Positions = append(snap.Positions, p)
	}
	return snap, nil
}

// Translate moves every root bone by delta.
func (s *Skeleton) Translate(delta mgl.Vec3) {
	for _, r := range s.roots {
		s.bones[r].Translation = s.bones[r].Translation.Add(delta)
	}
	s.update()
}

// CommitPose writes solved world positions and orientations back as local
// transforms. Joints are applied root first so each one sees its parent's
// new transform.
func (s *Skeleton) CommitPose(chain string, joints []string, pose ik.Pose) {
	for i, name := range joints {
		idx, ok := s.byName[name]
		if !ok || i >= len(pose.Positions) {
			continue
		}
		rot := mgl.QuatIdent()
		if i < len(pose.Orientations) {
			rot = pose.Orientations[i]
		}
		s.setWorld(idx, pose.Positions[i], rot)
	}
}

func (s *Skeleton) setWorld(i int, pos mgl.Vec3, rot mgl.Quat) {
	b := s.bones[i]
	parent := s.parentTransform(i)
	b.Translation = parent.Inv().Mul4x1(pos.Vec4(1)).Vec3()
	b.Rotation = rotationOf(parent).Inverse().Mul(rot).Normalize()
	s.calculateWorldTransform(i, parent)
}

// Ground returns the heightfield bundled with the rig, if any.
func (s *Skeleton) Ground() (*footing.Heightfield, bool) {
	return s.ground, s.ground != nil
}

// loadRig picks the loader by extension. An empty path loads the built-in
// biped.
func loadRig(file string) (*Skeleton, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case "":
		if file == "" {
			return parseYAMLRig(builtinRig)
		}
	case ".gltf", ".glb":
		return loadglTFRig(file)
	case ".yaml", ".yml":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		return parseYAMLRig(data)
	}
	return nil, fmt.Errorf("unsupported rig format %q", file)
}

func loadglTFRig(file string) (*Skeleton, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Use the directory of the file as the file system for resolving relative resources
	decoder := gltf.NewDecoderFS(f, os.DirFS(path.Dir(filepath.ToSlash(file))))
	doc := new(gltf.Document)
	if err = decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode gltf from file '%s': %w", file, err)
	}
	return skeletonFromDocument(doc)
}

func skeletonFromDocument(doc *gltf.Document) (*Skeleton, error) {
	bones := make([]*Bone, len(doc.Nodes))
	seen := make(map[string]bool, len(doc.Nodes))
	for idx, n := range doc.Nodes {
		b := &Bone{Name: n.Name, Parent: -1, node: idx}
		if b.Name == "" || seen[b.Name] {
			b.Name = fmt.Sprintf("node%d", idx)
		}
		seen[b.Name] = true
		b.Translation, b.Rotation, b.Scale = nodeTRS(n)
		for _, c := range n.Children {
			if int(c) >= len(doc.Nodes) {
				return nil, fmt.Errorf("node %q: child %d out of range", b.Name, c)
			}
			b.Children = append(b.Children, int(c))
		}
		bones[idx] = b
	}
	for idx, b := range bones {
		for _, c := range b.Children {
			if bones[c].Parent >= 0 {
				return nil, fmt.Errorf("node %d has more than one parent", c)
			}
			bones[c].Parent = idx
		}
	}
	s, err := newSkeleton(bones)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

func nodeTRS(n *gltf.Node) (t mgl.Vec3, r mgl.Quat, sc mgl.Vec3) {
	m := mgl.Mat4(n.Matrix)
	if m != (mgl.Mat4{}) && m != mgl.Ident4() {
		sc = mgl.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
		return m.Col(3).Vec3(), rotationOf(m), sc
	}
	t = mgl.Vec3(n.Translation)
	r = mgl.Quat{W: n.Rotation[3], V: mgl.Vec3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}}
	if r.Len() == 0 {
		r = mgl.QuatIdent()
	}
	sc = mgl.Vec3(n.Scale)
	if sc == (mgl.Vec3{}) {
		sc = mgl.Vec3{1, 1, 1}
	}
	return t, r.Normalize(), sc
}

// document returns the rig as a glTF document with current local
// transforms. Rigs loaded from glTF update their source document.
func (s *Skeleton) document() *gltf.Document {
	doc := s.doc
	if doc == nil {
		doc = &gltf.Document{Asset: gltf.Asset{Version: "2.0", Generator: "limbik"}}
		scene := &gltf.Scene{Name: "rig"}
		for i, b := range s.bones {
			b.node = i
			n := &gltf.Node{Name: b.Name}
			for _, c := range b.Children {
				n.Children = append(n.Children, uint32(c))
			}
			doc.Nodes = append(doc.Nodes, n)
		}
		for _, r := range s.roots {
			scene.Nodes = append(scene.Nodes, uint32(r))
		}
		doc.Scenes = []*gltf.Scene{scene}
		zero := uint32(0)
		doc.Scene = &zero
		s.doc = doc
	}
	for _, b := range s.bones {
		if b.node < 0 || b.node >= len(doc.Nodes) {
			continue
		}
		n := doc.Nodes[b.node]
		n.Matrix = [16]float32(mgl.Ident4())
		n.Translation = [3]float32(b.Translation)
		n.Rotation = [4]float32{b.Rotation.V[0], b.Rotation.V[1], b.Rotation.V[2], b.Rotation.W}
		n.Scale = [3]float32(b.Scale)
	}
	return doc
}

// Export saves the posed rig. A .glb extension writes the binary container.
func (s *Skeleton) Export(file string) error {
	doc := s.document()
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if strings.EqualFold(filepath.Ext(file), ".glb") {
		return gltf.SaveBinary(doc, file)
	}
	return gltf.Save(doc, file)
}

type yamlRig struct {
	Joints []struct {
		Name        string    `yaml:"name"`
		Parent      string    `yaml:"parent"`
		Translation []float32 `yaml:"translation"`
		Rotation    []float32 `yaml:"rotation"`
		Scale       []float32 `yaml:"scale"`
	} `yaml:"joints"`
	Ground *struct {
		Origin  []float32   `yaml:"origin"`
		Cell    float32     `yaml:"cell"`
		Heights [][]float32 `yaml:"heights"`
	} `yaml:"ground"`
}

// parseYAMLRig reads a joint list where parents are declared before their
// children.
func parseYAMLRig(data []byte) (*Skeleton, error) {
	var rig yamlRig
	if err := yaml.Unmarshal(data, &rig); err != nil {
		return nil, fmt.Errorf("failed to parse rig: %w", err)
	}
	index := make(map[string]int, len(rig.Joints))
	bones := make([]*Bone, 0, len(rig.Joints))
	for i, j := range rig.Joints {
		if j.Name == "" {
			return nil, fmt.Errorf("joint %d has no name", i)
		}
		b := &Bone{
			Name:     j.Name,
			Parent:   -1,
			Rotation: mgl.QuatIdent(),
			Scale:    mgl.Vec3{1, 1, 1},
			node:     -1,
		}
		if err := readFloats(j.Translation, b.Translation[:]); err != nil {
			return nil, fmt.Errorf("joint %q translation: %w", j.Name, err)
		}
		if len(j.Rotation) > 0 {
			var r [4]float32
			if err := readFloats(j.Rotation, r[:]); err != nil {
				return nil, fmt.Errorf("joint %q rotation: %w", j.Name, err)
			}
			b.Rotation = mgl.Quat{W: r[3], V: mgl.Vec3{r[0], r[1], r[2]}}.Normalize()
		}
		if len(j.Scale) > 0 {
			if err := readFloats(j.Scale, b.Scale[:]); err != nil {
				return nil, fmt.Errorf("joint %q scale: %w", j.Name, err)
			}
		}
		if j.Parent != "" {
			p, ok := index[j.Parent]
			if !ok {
				return nil, fmt.Errorf("joint %q: parent %q must be declared first", j.Name, j.Parent)
			}
			b.Parent = p
			bones[p].Children = append(bones[p].Children, len(bones))
		}
		index[j.Name] = len(bones)
		bones = append(bones, b)
	}
	s, err := newSkeleton(bones)
	if err != nil {
		return nil, err
	}
	if g := rig.Ground; g != nil {
		hf := &footing.Heightfield{Cell: g.Cell, Heights: g.Heights}
		if err := readFloats(g.Origin, hf.Origin[:]); err != nil {
			return nil, fmt.Errorf("ground origin: %w", err)
		}
		if err := hf.Validate(); err != nil {
			return nil, err
		}
		s.ground = hf
	}
	return s, nil
}

func readFloats(src, dst []float32) error {
	if len(src) == 0 {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("want %d values, got %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
