//go:build windows

package notification

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32           = syscall.NewLazyDLL("user32.dll")
	procMessageBoxW  = user32.NewProc("MessageBoxW")
	procFindWindowW  = user32.NewProc("FindWindowW")
	procPostMessageW = user32.NewProc("PostMessageW")
	procSetWindowPos = user32.NewProc("SetWindowPos")
)

const (
	mbYesNo           = 0x00000004
	mbIconInformation = 0x00000040
	mbIconError       = 0x00000010
	mbTopmost         = 0x00040000

	idYes = 6
	idNo  = 7

	wmCommand = 0x0111

	swpNoSize     = 0x0001
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010
)

func askConfirmPlatform(x, y int, source, translated string) (bool, error) {
	body := fmt.Sprintf("%s\n\n(original)\n%s\n\nYes pastes the translation, No keeps the original text.", translated, source)
	textPtr, err := syscall.UTF16PtrFromString(body)
	if err != nil {
		return false, err
	}
	titlePtr, err := syscall.UTF16PtrFromString(promptTitle)
	if err != nil {
		return false, err
	}

	// MessageBox cannot be positioned up front; nudge it once it appears.
	go moveWhenVisible(x, y)

	ret, _, callErr := procMessageBoxW.Call(0,
		uintptr(unsafe.Pointer(textPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		mbYesNo|mbIconInformation|mbTopmost)
	if ret == 0 {
		return false, fmt.Errorf("MessageBoxW: %v", callErr)
	}
	return ret == idYes, nil
}

func moveWhenVisible(x, y int) {
	titlePtr, err := syscall.UTF16PtrFromString(promptTitle)
	if err != nil {
		return
	}
	for i := 0; i < 50; i++ {
		hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(titlePtr)))
		if hwnd != 0 {
			procSetWindowPos.Call(hwnd, 0, uintptr(x), uintptr(y), 0, 0,
				swpNoSize|swpNoZOrder|swpNoActivate)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func closePromptPlatform() {
	titlePtr, err := syscall.UTF16PtrFromString(promptTitle)
	if err != nil {
		return
	}
	hwnd, _, _ := procFindWindowW.Call(0, uintptr(unsafe.Pointer(titlePtr)))
	if hwnd != 0 {
		// MB_YESNO has no cancel item, so the dialog ignores WM_CLOSE.
		// Answer No on the user's behalf instead.
		procPostMessageW.Call(hwnd, wmCommand, idNo, 0)
	}
}

func showBlockingErrorPlatform(title, message string) {
	textPtr, err1 := syscall.UTF16PtrFromString(message)
	titlePtr, err2 := syscall.UTF16PtrFromString(title)
	if err1 != nil || err2 != nil {
		return
	}
	procMessageBoxW.Call(0,
		uintptr(unsafe.Pointer(textPtr)),
		uintptr(unsafe.Pointer(titlePtr)),
		mbIconError|mbTopmost)
}
