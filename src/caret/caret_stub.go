//go:build !windows

package caret

// No caret or pointer query backend on this platform; anchoring is a UX
// enhancement only, so an invalid anchor is the correct degraded answer.
func probePlatform() Anchor {
	return Anchor{Source: SourceFallback}
}
