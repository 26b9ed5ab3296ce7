package uniform

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/framepipe"
)

var testLight = Light{Center: mgl32.Vec2{0.5, 0.25}, Density: 0.9, Weight: 0.4, Decay: 0.95, Exposure: 0.6}

func TestLight_Encode(t *testing.T) {
	buf := make([]byte, LightSize)
	testLight.Encode(buf)
	if got := DecodeLight(buf); got != testLight {
		t.Errorf("DecodeLight() = %+v, want %+v", got, testLight)
	}
}

func TestBlock_Encode(t *testing.T) {
	b := Block{ProjectView: DefaultCamera().ProjectView(2), Light: testLight}
	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = 0xff
	}
	if err := b.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := LightOffset + LightSize; i < BlockSize; i++ {
		if buf[i] != 0 {
			t.Fatalf("padding byte %d = %#x, want 0", i, buf[i])
		}
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != b {
		t.Errorf("Decode() = %+v, want %+v", got, b)
	}
	// Column-major: the first column holds the x scale.
	if f := float(buf, 0); f != b.ProjectView.At(0, 0) {
		t.Errorf("first float = %v, want %v", f, b.ProjectView.At(0, 0))
	}
}

func TestBlock_ShortBuffer(t *testing.T) {
	if err := (Block{}).Encode(make([]byte, BlockSize-1)); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Encode() error = %v, want ErrShortBuffer", err)
	}
	if _, err := Decode(make([]byte, LightOffset)); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("Decode() error = %v, want ErrShortBuffer", err)
	}
}

func TestScreenPosition(t *testing.T) {
	cam := DefaultCamera()
	pv := cam.ProjectView(1)

	tests := []struct {
		name   string
		world  mgl32.Vec3
		wantOK bool
		check  func(c mgl32.Vec2) bool
	}{
		{"target is centered", cam.Target, true, func(c mgl32.Vec2) bool {
			return near(c[0], 0.5) && near(c[1], 0.5)
		}},
		{"above is up", mgl32.Vec3{0, 0.5, 0}, true, func(c mgl32.Vec2) bool {
			return near(c[0], 0.5) && c[1] < 0.5
		}},
		{"right is right", mgl32.Vec3{0.5, 0, 0}, true, func(c mgl32.Vec2) bool {
			return c[0] > 0.5
		}},
		{"behind the camera", mgl32.Vec3{0, 1, 8}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := ScreenPosition(pv, tt.world)
			if ok != tt.wantOK {
				t.Fatalf("ScreenPosition() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.check != nil && !tt.check(c) {
				t.Errorf("ScreenPosition() = %v", c)
			}
		})
	}
}

func TestCamera_Orbit(t *testing.T) {
	cam := DefaultCamera()
	tests := []struct {
		name  string
		angle float32
		want  mgl32.Vec3
	}{
		{"zero", 0, mgl32.Vec3{0, 1, 4}},
		{"quarter", math.Pi / 2, mgl32.Vec3{4, 1, 0}},
		{"half", math.Pi, mgl32.Vec3{0, 1, -4}},
		{"full", 2 * math.Pi, mgl32.Vec3{0, 1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cam.Orbit(tt.angle)
			if !nearVec3(got.Eye, tt.want) {
				t.Errorf("Orbit(%v).Eye = %v, want %v", tt.angle, got.Eye, tt.want)
			}
			if got.Target != cam.Target || got.Up != cam.Up {
				t.Errorf("Orbit(%v) moved the target or up vector", tt.angle)
			}
		})
	}
}

func TestScene_Block(t *testing.T) {
	s := Scene{
		Camera: DefaultCamera(),
		Light:  mgl32.Vec3{0, 0.5, 0},
		Params: testLight,
		Spin:   math.Pi,
		Width:  64,
		Height: 32,
	}
	b0 := s.Block(0)
	if b0.Light.Exposure != testLight.Exposure {
		t.Errorf("frame 0 exposure = %v, want %v", b0.Light.Exposure, testLight.Exposure)
	}
	if !near(b0.Light.Center[0], 0.5) || b0.Light.Center[1] >= 0.5 {
		t.Errorf("frame 0 center = %v", b0.Light.Center)
	}
	if b0.ProjectView == s.Block(1).ProjectView {
		t.Error("camera did not move between frames")
	}

	s.Light = mgl32.Vec3{0, 1, 8}
	if b := s.Block(0); b.Light.Exposure != 0 || b.Light.Center != testLight.Center {
		t.Errorf("light behind camera = %+v, want zero exposure and default center", b.Light)
	}
}

func TestWriter(t *testing.T) {
	var seen []uint64
	w := Writer(func(index uint64) Block {
		seen = append(seen, index)
		return Block{Light: testLight}
	})
	dst := make([]byte, framepipe.DefaultUniformSize)
	if err := w(&framepipe.FrameInfo{Index: 7}, dst); err != nil {
		t.Fatalf("writer: %v", err)
	}
	if len(seen) != 1 || seen[0] != 7 {
		t.Errorf("writer saw indices %v, want [7]", seen)
	}
	if got := DecodeLight(dst[LightOffset:]); got != testLight {
		t.Errorf("encoded light = %+v", got)
	}
	if err := w(&framepipe.FrameInfo{}, dst[:8]); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short writer error = %v, want ErrShortBuffer", err)
	}
}

// near compares with an absolute tolerance. mgl32's threshold helpers are
// relative and reject tiny rounding errors around zero.
func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func nearVec3(a, b mgl32.Vec3) bool {
	return near(a[0], b[0]) && near(a[1], b[1]) && near(a[2], b[2])
}
