//go:build !windows

package notification

import "log"

func askConfirmPlatform(x, y int, source, translated string) (bool, error) {
	log.Printf("notification: translation of %q ready: %q (no prompt on this platform, dismissing)", source, translated)
	return false, nil
}

func closePromptPlatform() {}

func showBlockingErrorPlatform(title, message string) {
	log.Printf("%s: %s", title, message)
}
