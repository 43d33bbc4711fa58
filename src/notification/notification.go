// Package notification is the platform shim under src/popup: a topmost
// confirm prompt near the caret on Windows, log-only elsewhere.
package notification

const promptTitle = "Translation ready"

// maxPromptChars keeps the prompt readable for large selections.
const maxPromptChars = 600

func truncateForPrompt(s string) string {
	if len(s) <= maxPromptChars {
		return s
	}
	// Cut on a rune boundary.
	cut := maxPromptChars
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}

// AskConfirm shows the translated text near (x, y) and blocks until the
// user confirms or dismisses it, or ClosePrompt tears it down.
func AskConfirm(x, y int, source, translated string) (bool, error) {
	return askConfirmPlatform(x, y, truncateForPrompt(source), truncateForPrompt(translated))
}

// ClosePrompt dismisses an open confirm prompt, if any.
func ClosePrompt() {
	closePromptPlatform()
}

// ShowBlockingError reports a startup-fatal condition to the user and
// returns once acknowledged.
func ShowBlockingError(title, message string) {
	showBlockingErrorPlatform(title, message)
}
