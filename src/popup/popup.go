// Package popup is the confirmation surface shown near the caret once a
// translation is ready.
package popup

import (
	"log"

	"select-translate/src/caret"
	"select-translate/src/notification"
)

// Decision is the user's answer to a shown translation.
type Decision int

const (
	DecisionConfirm Decision = iota
	DecisionDismiss
)

// Popup window dimensions used for clamping against screen bounds.
const (
	promptWidth  = 380
	promptHeight = 160
)

// Controller presents pending and result surfaces for a pipeline run.
type Controller interface {
	// ShowPending signals that a run is in flight. Lightweight; the tray
	// tooltip is the primary busy indicator.
	ShowPending(anchor caret.Anchor)
	// ShowResult displays the translation and resolves with exactly one
	// decision on the returned channel.
	ShowResult(anchor caret.Anchor, source, translated string) <-chan Decision
	// Close tears down any visible surface, for superseded runs.
	Close()
}

type controller struct {
	autoConfirm bool
	ask         func(x, y int, source, translated string) (bool, error)
	dismiss     func()
}

// New returns the platform controller. With autoConfirm set, ShowResult
// resolves immediately with DecisionConfirm and no surface is shown.
func New(autoConfirm bool) Controller {
	return &controller{
		autoConfirm: autoConfirm,
		ask:         notification.AskConfirm,
		dismiss:     notification.ClosePrompt,
	}
}

func (c *controller) ShowPending(anchor caret.Anchor) {
	log.Printf("popup: run pending near (%d,%d) source=%v", anchor.X, anchor.Y, anchor.Source)
}

func (c *controller) ShowResult(anchor caret.Anchor, source, translated string) <-chan Decision {
	ch := make(chan Decision, 1)
	if c.autoConfirm {
		ch <- DecisionConfirm
		return ch
	}

	x, y := caret.PopupPosition(anchor, promptWidth, promptHeight)
	go func() {
		confirmed, err := c.ask(x, y, source, translated)
		if err != nil {
			log.Printf("popup: prompt failed, dismissing: %v", err)
			ch <- DecisionDismiss
			return
		}
		if confirmed {
			ch <- DecisionConfirm
		} else {
			ch <- DecisionDismiss
		}
	}()
	return ch
}

func (c *controller) Close() {
	c.dismiss()
}
