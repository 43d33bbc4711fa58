package caret

import "testing"

func TestClampPopup(t *testing.T) {
	const screenW, screenH = 1920, 1080

	tests := []struct {
		name   string
		ax, ay int
		w, h   int
		wantX  int
		wantY  int
	}{
		{"centered above anchor", 960, 540, 380, 220, 770, 310},
		{"clamped left edge", 10, 540, 380, 220, 0, 310},
		{"clamped right edge", 1910, 540, 380, 220, 1540, 310},
		{"flipped below near top", 960, 100, 380, 220, 770, 120},
		{"clamped bottom after flip", 960, 300, 380, 900, 770, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := clampPopup(tt.ax, tt.ay, tt.w, tt.h, screenW, screenH)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("clampPopup(%d,%d,%d,%d) = (%d,%d), want (%d,%d)",
					tt.ax, tt.ay, tt.w, tt.h, x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestProbeNeverPanics(t *testing.T) {
	a := Probe()
	if a.Valid && (a.X < -100000 || a.X > 100000 || a.Y < -100000 || a.Y > 100000) {
		t.Errorf("implausible anchor %+v", a)
	}
}
