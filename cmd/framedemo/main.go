// Command framedemo drives the volume light frame through the frame
// pipeline: an occlusion prepass, a light scattering composite into the
// swapchain image and a text overlay.
//
// Usage:
//
//	framedemo -frames 240 -resize 320x180 -output last.png
//
// SIGINT stops the loop, drains the in-flight frames and prints a summary.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/xlab/closer"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/framepipe"
	"github.com/gogpu/framepipe/backend"
	_ "github.com/gogpu/framepipe/backend/software"
	_ "github.com/gogpu/framepipe/backend/wgpu"
	"github.com/gogpu/framepipe/uniform"
)

type config struct {
	width, height int
	resizeW       int
	resizeH       int
	resizeAt      int
	frames        int
	inFlight      int
	uniformSize   int64
	backend       string
	output        string
}

func main() {
	var (
		width    = flag.Int("width", 640, "surface width")
		height   = flag.Int("height", 360, "surface height")
		frames   = flag.Int("frames", 120, "number of frames to present")
		inFlight = flag.Int("in-flight", framepipe.DefaultFramesInFlight, "frames in flight")
		resize   = flag.String("resize", "", "resize the surface to WxH halfway through")
		uniforms = flag.String("uniform-size", "256", "per-slot uniform buffer size (e.g. 256, 4k)")
		name     = flag.String("backend", "", "backend name (default: best available)")
		output   = flag.String("output", "", "write the last presented image as PNG")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	framepipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config{
		width:    *width,
		height:   *height,
		frames:   *frames,
		inFlight: *inFlight,
		resizeAt: *frames / 2,
		backend:  *name,
		output:   *output,
	}
	size, err := parseUniformSize(*uniforms)
	if err != nil {
		closer.Fatalln("framedemo: -uniform-size:", err)
	}
	cfg.uniformSize = size
	if *resize != "" {
		if cfg.resizeW, cfg.resizeH, err = parseSize(*resize); err != nil {
			closer.Fatalln("framedemo: -resize:", err)
		}
	}

	d, err := newDemo(cfg)
	if err != nil {
		closer.Fatalln("framedemo:", err)
	}
	closer.Bind(d.close)

	go func() {
		if err := d.run(); err != nil {
			closer.Fatalln("framedemo:", err)
		}
		closer.Close()
	}()
	closer.Hold()
}

// parseUniformSize parses a size such as "256" or "4k". The buffer must
// hold the uniform block.
func parseUniformSize(s string) (int64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	if n < uniform.BlockSize {
		return 0, fmt.Errorf("%s is smaller than the %d byte uniform block", units.BytesSize(float64(n)), uniform.BlockSize)
	}
	return n, nil
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%q is empty", s)
	}
	return w, h, nil
}

type demo struct {
	cfg   config
	fb    backend.FrameBackend
	p     *framepipe.Pipeline
	frame *volumeLight

	start time.Time
	stop  atomic.Bool
	done  chan struct{}
}

func newDemo(cfg config) (*demo, error) {
	bcfg := backend.Config{Width: cfg.width, Height: cfg.height, Label: "framedemo"}
	var (
		fb  backend.FrameBackend
		err error
	)
	if cfg.backend != "" {
		fb, err = backend.Init(cfg.backend, bcfg)
	} else {
		fb, err = backend.InitDefault(bcfg)
	}
	if err != nil {
		return nil, err
	}

	frame := newVolumeLight(fb, cfg.width, cfg.height)
	p, err := framepipe.New(fb.Backend(),
		framepipe.WithFramesInFlight(cfg.inFlight),
		framepipe.WithUniformSize(uint64(cfg.uniformSize)),
		framepipe.WithUniformWriter(frame.uniforms),
		framepipe.WithLabel("framedemo"),
		framepipe.WithStateObserver(func(from, to framepipe.State) {
			framepipe.Logger().Debug("framedemo: state", "from", from, "to", to)
		}),
	)
	if err != nil {
		fb.Close()
		return nil, err
	}
	if err := frame.create(p); err != nil {
		_ = p.Shutdown()
		fb.Close()
		return nil, err
	}
	return &demo{cfg: cfg, fb: fb, p: p, frame: frame, done: make(chan struct{})}, nil
}

func (d *demo) run() error {
	defer close(d.done)
	d.start = time.Now()
	for presented := 0; presented < d.cfg.frames && !d.stop.Load(); {
		if presented == d.cfg.resizeAt && d.cfg.resizeW > 0 {
			if err := d.fb.Resize(d.cfg.resizeW, d.cfg.resizeH); err != nil {
				return err
			}
			d.frame.resize(d.cfg.resizeW, d.cfg.resizeH)
			d.cfg.resizeW = 0
		}

		d.frame.cpu = d.p.Stats().LastCPUTime
		if err := d.p.DeclareFrame(d.frame.passes()...); err != nil {
			return err
		}
		outcome, err := d.p.Tick()
		switch outcome {
		case framepipe.Presented:
			if err != nil {
				framepipe.Logger().Warn("framedemo: pass failed", "frame", d.p.FrameIndex(), "err", err)
			}
			presented++
		case framepipe.SurfaceStale:
			if err := d.p.SurfaceRecreated(); err != nil {
				return err
			}
			if err := d.frame.recreate(d.p); err != nil {
				return err
			}
		default:
			return fmt.Errorf("frame %d: %s: %w", d.p.FrameIndex(), outcome, err)
		}
	}
	return nil
}

// close stops the loop, drains the pipeline and reports. closer runs it on
// normal exit, on fatal errors and on signals.
func (d *demo) close() {
	d.stop.Store(true)
	<-d.done

	if err := d.p.Shutdown(); err != nil {
		framepipe.Logger().Error("framedemo: shutdown", "err", err)
	}
	if d.cfg.output != "" {
		if err := d.writePNG(); err != nil {
			framepipe.Logger().Error("framedemo: write png", "err", err)
		}
	}
	d.summary()
	d.frame.destroy()
	d.fb.Close()
}

func (d *demo) writePNG() error {
	img := d.frame.frontBuffer()
	if img == nil {
		return fmt.Errorf("%s backend has no presented image", d.fb.Name())
	}
	f, err := os.Create(d.cfg.output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	info, err := f.Stat()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	framepipe.Logger().Info("framedemo: wrote image",
		"path", d.cfg.output,
		"size", fmt.Sprintf("%dx%d", img.Rect.Dx(), img.Rect.Dy()),
		"bytes", units.HumanSize(float64(info.Size())))
	return nil
}

func (d *demo) summary() {
	s := d.p.Stats()
	elapsed := time.Since(d.start)
	pr := message.NewPrinter(language.English)
	pr.Printf("backend:    %s\n", d.fb.Name())
	pr.Printf("frames:     %d submitted, %d presented in %s\n", s.Frames, s.Presented, units.HumanDuration(elapsed))
	if secs := elapsed.Seconds(); secs > 0 {
		pr.Printf("rate:       %.1f frames/s\n", float64(s.Presented)/secs)
	}
	pr.Printf("surface:    %d stale, %d rejected, %d pass failures\n", s.SurfaceStale, s.Rejected, s.PassFailures)
	pr.Printf("cpu:        %v avg, %v last\n", s.AvgCPUTime, s.LastCPUTime)
	pr.Printf("fence wait: %d stalls, %v total\n", s.Stalls, s.TotalWaitTime)
}
