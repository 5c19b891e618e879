// Package gpuapi is the thin device/surface bring-up layer: it turns a
// native window handle into an instance/adapter/device/surface quad
// the renderer package's Deps expects, the same bring-up app.App.Init
// performs, pulled out so the orchestrator doesn't own windowing.
package gpuapi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// RequiredFeatures names the adapter capabilities §4.13's init()
// requires before accepting a GPU. wgpu's portable feature set doesn't
// expose Vulkan-specific bits like bufferDeviceAddress or
// descriptorBindingPartiallyBound directly, so this list records the
// spec's intent for documentation and future native-backend wiring
// rather than gating adapter selection on it.
var RequiredFeatures = []string{
	"samplerFilterMinmax",
	"descriptorBindingPartiallyBound",
	"runtimeDescriptorArray",
	"bufferDeviceAddress",
	"hostQueryReset",
	"multiview",
	"shaderBufferFloat32AtomicAdd",
	"geometryShader",
	"samplerAnisotropy",
}

// Device bundles the instance/adapter/device/queue/surface quad and
// the live surface configuration, equivalent to app.App's WebGPU
// fields but without any scene/pipeline ownership.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration
}

// Init creates the instance, requests a high-performance discrete
// adapter compatible with window's surface, and configures the swap
// chain at the window's current framebuffer size (§4.13 init()).
func Init(window *glfw.Window) (*Device, error) {
	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("gpuapi: request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("gpuapi: request device: %w", err)
	}

	d := &Device{
		Instance: instance,
		Adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
		Surface:  surface,
	}

	width, height := window.GetFramebufferSize()
	if err := d.Configure(width, height); err != nil {
		return nil, err
	}
	return d, nil
}

// Configure (re)configures the swap chain at the given framebuffer
// size, used both at Init and after a resize/SUBOPTIMAL-driven
// recreation (§4.13 draw_frame() step 5).
func (d *Device) Configure(width, height int) error {
	caps := d.Surface.GetCapabilities(d.Adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("gpuapi: surface reports no supported formats")
	}

	d.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
	return nil
}

// AcquireFrame returns the next swap-chain texture view. A
// GetCurrentTexture error (SUBOPTIMAL/OUT_OF_DATE) is reported to the
// caller, which reconfigures via Configure and retries (§4.13
// draw_frame() step 5).
func (d *Device) AcquireFrame() (*wgpu.TextureView, error) {
	tex, err := d.Surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("gpuapi: acquire frame: %w", err)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("gpuapi: create swap view: %w", err)
	}
	return view, nil
}

// Present presents the current swap-chain image.
func (d *Device) Present() {
	d.Surface.Present()
}
