//go:build windows

package caret

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	getForegroundWindow      = user32.NewProc("GetForegroundWindow")
	getWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	getGUIThreadInfo         = user32.NewProc("GetGUIThreadInfo")
	clientToScreen           = user32.NewProc("ClientToScreen")
	getCursorPos             = user32.NewProc("GetCursorPos")
)

const guiCaretBlinking = 0x00000001

type rect struct {
	left, top, right, bottom int32
}

type point struct {
	x, y int32
}

type guiThreadInfo struct {
	cbSize        uint32
	flags         uint32
	hwndActive    uintptr
	hwndFocus     uintptr
	hwndCapture   uintptr
	hwndMenuOwner uintptr
	hwndMoveSize  uintptr
	hwndCaret     uintptr
	rcCaret       rect
}

// probePlatform tries the focused thread's caret geometry first and falls
// back to the pointer position. GetGUIThreadInfo answers synchronously, so
// the whole probe stays within the bounded-latency contract.
func probePlatform() Anchor {
	if x, y, ok := caretFromGUIThread(); ok {
		return Anchor{X: x, Y: y, Valid: true, Source: SourcePrecise}
	}
	if x, y, ok := pointerPosition(); ok {
		return Anchor{X: x, Y: y, Valid: true, Source: SourceFallback}
	}
	return Anchor{Source: SourceFallback}
}

func caretFromGUIThread() (int, int, bool) {
	hwnd, _, _ := getForegroundWindow.Call()
	if hwnd == 0 {
		return 0, 0, false
	}

	threadID, _, _ := getWindowThreadProcessId.Call(hwnd, 0)
	if threadID == 0 {
		return 0, 0, false
	}

	var info guiThreadInfo
	info.cbSize = uint32(unsafe.Sizeof(info))
	ret, _, _ := getGUIThreadInfo.Call(threadID, uintptr(unsafe.Pointer(&info)))
	if ret == 0 || info.hwndCaret == 0 {
		return 0, 0, false
	}
	// Only trust the geometry while the caret is actively blinking;
	// otherwise it may describe a control that lost focus.
	if info.flags&guiCaretBlinking == 0 {
		return 0, 0, false
	}

	pt := point{x: info.rcCaret.left, y: info.rcCaret.bottom}
	ret, _, _ = clientToScreen.Call(info.hwndCaret, uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, false
	}
	return int(pt.x), int(pt.y), true
}

func pointerPosition() (int, int, bool) {
	var pt point
	ret, _, _ := getCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, false
	}
	return int(pt.x), int(pt.y), true
}
