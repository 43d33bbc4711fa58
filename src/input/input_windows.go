//go:build windows

package input

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0

	vkControl = 0x11
	vkA       = 0x41
	vkC       = 0x43
	vkV       = 0x56
)

// settleDelay gives the focused application time to process a chord before
// the pipeline takes its next step.
const settleDelay = 20 * time.Millisecond

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type rawInput struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // match the C INPUT union size
}

type windowsDriver struct{}

func newPlatformDriver() Driver { return windowsDriver{} }

func (windowsDriver) SendSelectAll() error { return sendChord(vkA) }
func (windowsDriver) SendCopy() error      { return sendChord(vkC) }
func (windowsDriver) SendPaste() error     { return sendChord(vkV) }

// sendChord presses Ctrl+<key> as a single SendInput batch. Scan codes are
// included alongside virtual keys for compatibility with elevated windows.
func sendChord(vk uint16) error {
	ctrlScan, _, _ := mapVirtualKeyW.Call(vkControl, mapvkVkToVsc)
	keyScan, _, _ := mapVirtualKeyW.Call(uintptr(vk), mapvkVkToVsc)

	inputs := []rawInput{
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkControl, wScan: uint16(ctrlScan)}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vk, wScan: uint16(keyScan)}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vk, wScan: uint16(keyScan), dwFlags: keyeventfKeyup}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkControl, wScan: uint16(ctrlScan), dwFlags: keyeventfKeyup}},
	}

	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret == 0 {
		return fmt.Errorf("SendInput failed: %w", err)
	}
	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput injected %d of %d events", ret, len(inputs))
	}

	time.Sleep(settleDelay)
	return nil
}
