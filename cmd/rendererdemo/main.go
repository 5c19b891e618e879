// Command rendererdemo is the minimal bring-up harness: it opens a
// window, initializes the GPU device, wires the orchestrator, and
// drives it through Update/Prepare/DrawFrame every frame. Grounded on
// app.go/app_builder.go's window+device bring-up and mod_client.go's
// main loop shape. Pass -hud to also open the debughud stats overlay.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/debughud"
	"github.com/gekko3d/renderer/gpuapi"
	"github.com/gekko3d/renderer/internal/rlog"
	"github.com/gekko3d/renderer/persist"
	"github.com/gekko3d/renderer/renderer"
)

const (
	windowWidth  = 1280
	windowHeight = 720
	windowTitle  = "rendererdemo"
)

var showHUD = flag.Bool("hud", false, "open the live-stats debug overlay window")

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rendererdemo:", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(windowWidth, windowHeight, windowTitle, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()

	gpu, err := gpuapi.Init(window)
	if err != nil {
		return fmt.Errorf("gpu init: %w", err)
	}

	session, err := persist.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	log := rlog.New("rendererdemo", false)

	r, err := renderer.New(renderer.Deps{
		Device:    gpu.Device,
		Queue:     gpu.Queue,
		Width:     windowWidth,
		Height:    windowHeight,
		RTEnabled: true,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("renderer init: %w", err)
	}

	if session.ScenePath != "" {
		r.LoadWorld(session.ScenePath, func(err error) {
			if err != nil {
				log.Errorf("world load: %v", err)
				return
			}
			log.Infof("world %s loaded", session.ScenePath)
		})
	}

	if *showHUD {
		hud := debughud.Open(windowTitle+" stats", r.Stats)
		go hud.Main()
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		if err := gpu.Configure(width, height); err != nil {
			log.Errorf("resize reconfigure: %v", err)
			return
		}
		r.SetViewport(uint32(width), uint32(height))
		r.NotifyResized()
	})

	camPos := session.CameraPosition()
	if camPos == (mgl32.Vec3{}) {
		camPos = mgl32.Vec3{0, 2, 5}
	}
	cam := renderer.Camera{
		Position: camPos,
		View:     mgl32.LookAtV(camPos, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}),
		Proj:     mgl32.Perspective(mgl32.DegToRad(60), float32(windowWidth)/float32(windowHeight), 0.1, 1000),
	}

	last := time.Now()
	var elapsed float32

	for !window.ShouldClose() {
		glfw.PollEvents()

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		elapsed += dt

		r.Update(cam, cam, mgl32.Vec3{-0.3, -1, -0.2}.Normalize(), dt, elapsed, false, renderer.RenderOptions{
			Shadows: true,
			TAA:     true,
		}, renderer.DebugOptions{})
		r.Prepare()

		swapView, err := gpu.AcquireFrame()
		if err != nil {
			log.Warnf("acquire frame: %v, reconfiguring", err)
			w, h := window.GetFramebufferSize()
			if cfgErr := gpu.Configure(w, h); cfgErr != nil {
				return fmt.Errorf("reconfigure after acquire failure: %w", cfgErr)
			}
			continue
		}

		encoder, err := gpu.Device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("create command encoder: %w", err)
		}

		if _, err := r.DrawFrame(encoder, swapView); err != nil {
			log.Errorf("draw frame: %v", err)
			continue
		}

		cmd, err := encoder.Finish(nil)
		if err != nil {
			return fmt.Errorf("finish command buffer: %w", err)
		}
		gpu.Queue.Submit(cmd)
		gpu.Present()
	}

	session.SetCameraPosition(cam.Position)
	return persist.Save(session)
}
