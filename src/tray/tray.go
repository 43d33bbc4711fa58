// Package tray hosts the systray icon, menu and busy tooltip.
package tray

import (
	"log"

	"github.com/getlantern/systray"
)

const idleTooltip = "Select Translate"

// Handlers are the menu actions, invoked from the systray's goroutine.
// They must post into the event loop rather than doing work inline.
type Handlers struct {
	// OnTranslate mirrors the hotkey trigger.
	OnTranslate func()
	// OnStats returns the history summary to show as a notification.
	OnStats func()
	// OnQuit is invoked after systray teardown begins.
	OnQuit func()
}

var mStatus *systray.MenuItem

// Run blocks on the systray main loop. Must be called from the main
// goroutine on platforms that require it.
func Run(h Handlers) {
	systray.Run(func() { onReady(h) }, func() {
		if h.OnQuit != nil {
			h.OnQuit()
		}
	})
}

// Quit tears the systray down and unblocks Run.
func Quit() {
	systray.Quit()
}

// SetBusy flips the tooltip between idle and translating.
func SetBusy(busy bool) {
	if busy {
		systray.SetTooltip(idleTooltip + " - translating...")
		if mStatus != nil {
			mStatus.SetTitle("Translating...")
		}
		return
	}
	systray.SetTooltip(idleTooltip)
	if mStatus != nil {
		mStatus.SetTitle("Idle")
	}
}

func onReady(h Handlers) {
	systray.SetIcon(getIcon())
	systray.SetTitle(idleTooltip)
	systray.SetTooltip(idleTooltip)

	mStatus = systray.AddMenuItem("Idle", "Pipeline state")
	mStatus.Disable()
	systray.AddSeparator()
	mTranslate := systray.AddMenuItem("Translate Selection", "Run the capture-translate-replace pipeline")
	mStats := systray.AddMenuItem("History Stats", "Show translation history summary")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	go func() {
		for {
			select {
			case <-mTranslate.ClickedCh:
				if h.OnTranslate != nil {
					h.OnTranslate()
				}
			case <-mStats.ClickedCh:
				if h.OnStats != nil {
					h.OnStats()
				}
			case <-mQuit.ClickedCh:
				log.Printf("tray: quit requested")
				systray.Quit()
				return
			}
		}
	}()
}
