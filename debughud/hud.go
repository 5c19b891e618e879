// Package debughud is the renderer's optional live-stats overlay: a
// separate nucular master window showing frame counter, bake state,
// and queue depths pulled from renderer.Renderer.Stats(). Grounded on
// noisetorch-ng's main.go/ui.go (NewMasterWindowSize + an Update
// callback redrawing labels every frame) — run as its own OS window
// rather than composited into the swap chain, since nucular owns its
// surface and offers no hook to render into an externally-acquired
// wgpu texture view.
package debughud

import (
	"fmt"
	"image"

	"github.com/aarzilli/nucular"
	"github.com/aarzilli/nucular/style"

	"github.com/gekko3d/renderer/renderer"
)

// StatsFunc supplies the latest snapshot each time the window redraws.
type StatsFunc func() renderer.Stats

// Open creates the HUD window and returns immediately; the window
// drives its own event loop on the calling goroutine's caller is
// expected to run it on a dedicated goroutine (mirrors wnd.Main()
// being the last call in noisetorch's own main()).
func Open(title string, stats StatsFunc) nucular.MasterWindow {
	wnd := nucular.NewMasterWindowSize(0, title, image.Point{X: 320, Y: 180}, func(w *nucular.Window) {
		draw(w, stats())
	})

	st := style.FromTheme(style.DarkTheme, 1.0)
	wnd.SetStyle(st)
	return wnd
}

func draw(w *nucular.Window, s renderer.Stats) {
	w.Row(20).Dynamic(1)
	w.Label(fmt.Sprintf("frame %d  slot %d", s.Frame, s.FrameSlot), "LC")

	w.Row(20).Dynamic(1)
	if s.BakeActive {
		w.Label("DDGI bake: active", "LC")
	} else {
		w.Label("DDGI bake: idle", "LC")
	}

	w.Row(20).Dynamic(1)
	w.Label(fmt.Sprintf("pending world-position requests: %d", s.PendingWorldPos), "LC")

	w.Row(20).Dynamic(1)
	w.Label(fmt.Sprintf("pending deletions: %d", s.DeletionsPending), "LC")

	w.Row(20).Dynamic(1)
	w.Label(fmt.Sprintf("renderables %d  mesh slots %d", s.LiveRenderables, s.MeshTableUnits), "LC")
}
