// Package uniform defines the per-frame uniform block of the volume light
// frame and the camera math that fills it.
//
// The encoded layout matches the WGSL struct
//
//	struct Frame {
//	    project_view: mat4x4<f32>,
//	    center: vec2<f32>,
//	    density: f32,
//	    weight: f32,
//	    decay: f32,
//	    exposure: f32,
//	}
//
// Matrices are stored column-major, as mgl32 keeps them.
package uniform

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framepipe"
)

const (
	// LightOffset is the byte offset of the light parameters in the block.
	LightOffset = 64

	// LightSize is the encoded size of Light.
	LightSize = 24

	// BlockSize is the encoded size of Block, padded to the 16 byte
	// alignment of the uniform address space.
	BlockSize = 96
)

// ErrShortBuffer is returned when a destination or source slice cannot hold
// the encoded value.
var ErrShortBuffer = errors.New("uniform: buffer too small")

// Light holds the screen-space light scattering parameters.
type Light struct {
	// Center is the light position in normalized [0,1] texture
	// coordinates, y pointing down.
	Center mgl32.Vec2

	Density  float32
	Weight   float32
	Decay    float32
	Exposure float32
}

// Encode writes l into dst. It panics if dst is shorter than LightSize.
func (l Light) Encode(dst []byte) {
	_ = dst[LightSize-1]
	putFloats(dst, l.Center[0], l.Center[1], l.Density, l.Weight, l.Decay, l.Exposure)
}

// DecodeLight reads a Light from src. It panics if src is shorter than
// LightSize.
func DecodeLight(src []byte) Light {
	_ = src[LightSize-1]
	return Light{
		Center:   mgl32.Vec2{float(src, 0), float(src, 1)},
		Density:  float(src, 2),
		Weight:   float(src, 3),
		Decay:    float(src, 4),
		Exposure: float(src, 5),
	}
}

// Block is the per-frame uniform block.
type Block struct {
	ProjectView mgl32.Mat4
	Light       Light
}

// Encode writes b into dst and zeroes the trailing padding.
func (b Block) Encode(dst []byte) error {
	if len(dst) < BlockSize {
		return ErrShortBuffer
	}
	putFloats(dst, b.ProjectView[:]...)
	b.Light.Encode(dst[LightOffset:])
	clear(dst[LightOffset+LightSize : BlockSize])
	return nil
}

// Decode reads a Block from src.
func Decode(src []byte) (Block, error) {
	if len(src) < LightOffset+LightSize {
		return Block{}, ErrShortBuffer
	}
	var b Block
	for i := range b.ProjectView {
		b.ProjectView[i] = float(src, i)
	}
	b.Light = DecodeLight(src[LightOffset:])
	return b, nil
}

func putFloats(dst []byte, v ...float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func float(src []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
}

// Camera is a perspective camera looking at Target.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	// FovY is the vertical field of view in radians.
	FovY float32

	Near float32
	Far  float32
}

// DefaultCamera looks at the origin from 4 units away.
func DefaultCamera() Camera {
	return Camera{
		Eye:  mgl32.Vec3{0, 1, 4},
		Up:   mgl32.Vec3{0, 1, 0},
		FovY: mgl32.DegToRad(45),
		Near: 0.1,
		Far:  100,
	}
}

// ProjectView returns projection × view for the given aspect ratio.
func (c Camera) ProjectView(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	view := mgl32.LookAtV(c.Eye, c.Target, c.Up)
	return proj.Mul4(view)
}

// Orbit returns c rotated by angle radians around the Y axis through
// Target.
func (c Camera) Orbit(angle float32) Camera {
	rot := mgl32.HomogRotate3DY(angle)
	c.Eye = c.Target.Add(rot.Mul4x1(c.Eye.Sub(c.Target).Vec4(1)).Vec3())
	return c
}

// ScreenPosition projects world into normalized [0,1] texture coordinates.
// It reports false when the point is behind the camera.
func ScreenPosition(projectView mgl32.Mat4, world mgl32.Vec3) (mgl32.Vec2, bool) {
	clip := projectView.Mul4x1(world.Vec4(1))
	if clip.W() <= 0 {
		return mgl32.Vec2{}, false
	}
	ndc := clip.Vec3().Mul(1 / clip.W())
	return mgl32.Vec2{(ndc.X() + 1) / 2, (1 - ndc.Y()) / 2}, true
}

// Scene animates a camera orbiting a world-space light.
type Scene struct {
	Camera Camera
	Light  mgl32.Vec3
	Params Light

	// Spin is the camera rotation per frame in radians.
	Spin float32

	Width, Height int
}

// Block computes the uniform block of frame index. A light behind the
// camera keeps Params.Center and gets zero exposure.
func (s Scene) Block(index uint64) Block {
	aspect := float32(1)
	if s.Width > 0 && s.Height > 0 {
		aspect = float32(s.Width) / float32(s.Height)
	}
	cam := s.Camera.Orbit(s.Spin * float32(index))
	pv := cam.ProjectView(aspect)

	light := s.Params
	if center, ok := ScreenPosition(pv, s.Light); ok {
		light.Center = center
	} else {
		light.Exposure = 0
	}
	return Block{ProjectView: pv, Light: light}
}

// Writer returns a framepipe.UniformWriter that encodes the block produced
// by fn for each frame.
func Writer(fn func(index uint64) Block) framepipe.UniformWriter {
	return func(frame *framepipe.FrameInfo, dst []byte) error {
		return fn(frame.Index).Encode(dst)
	}
}
