// Package caret locates the text-insertion caret of the focused application
// so the confirmation popup can be anchored next to it. Probing is best
// effort: any OS failure yields an invalid anchor, never an error.
package caret

import (
	"github.com/kbinani/screenshot"
)

// Source tells which strategy produced an anchor.
type Source int

const (
	// SourcePrecise comes from the OS focused-control caret geometry.
	SourcePrecise Source = iota
	// SourceFallback is the pointer position, used when precise geometry is
	// unavailable on this platform or for the focused application.
	SourceFallback
)

// Anchor is a caret position in screen coordinates. Recomputed per request,
// never cached: a stale precise anchor is worse than the pointer.
type Anchor struct {
	X      int
	Y      int
	Valid  bool
	Source Source
}

// Probe reads the current caret anchor. Bounded and non-blocking; returns an
// invalid anchor when neither strategy can answer.
func Probe() Anchor {
	return probePlatform()
}

// ScreenSize reports the primary display bounds used for popup clamping.
// Falls back to a common size when no display is reported (headless CI).
func ScreenSize() (int, int) {
	if screenshot.NumActiveDisplays() < 1 {
		return 1920, 1080
	}
	b := screenshot.GetDisplayBounds(0)
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 1920, 1080
	}
	return b.Dx(), b.Dy()
}

// PopupPosition places a w x h popup centered above the anchor, 10px up,
// flipped 20px below the anchor when it would leave the top edge, and clamped
// to the primary display.
func PopupPosition(a Anchor, w, h int) (int, int) {
	screenW, screenH := ScreenSize()
	return clampPopup(a.X, a.Y, w, h, screenW, screenH)
}

func clampPopup(ax, ay, w, h, screenW, screenH int) (int, int) {
	x := ax - w/2
	y := ay - h - 10

	if x < 0 {
		x = 0
	}
	if x+w > screenW {
		x = screenW - w
	}
	if y < 0 {
		y = ay + 20
	}
	if y+h > screenH {
		y = screenH - h
	}
	return x, y
}
