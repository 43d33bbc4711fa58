package tray

import (
	_ "embed"
)

// 16x16 32bpp ICO, a white T on a blue field. Windows needs ICO bytes for
// the notification area.
//
//go:embed icon.ico
var iconICO []byte

func getIcon() []byte {
	return iconICO
}
