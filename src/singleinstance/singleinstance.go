// Package singleinstance keeps one resident process per machine and lets
// run-once invocations delegate their clipboard translation to it over TCP
// loopback. A resident binds the first port of a configurable range and
// answers PING with PONG; run-once clients scan the range to find it.
package singleinstance

import (
	"context"
	"os"
	"strconv"
)

// Mode selects where a delegated translation result goes.
type Mode int

const (
	// ModeClipboard translates the resident machine's clipboard text and
	// leaves the result on the clipboard.
	ModeClipboard Mode = iota
	// ModeStdout translates the clipboard text and returns it on the wire
	// for the client to print.
	ModeStdout
)

func (m Mode) String() string {
	if m == ModeStdout {
		return "STDOUT"
	}
	return "CLIPBOARD"
}

// Request is one parsed delegation request.
type Request struct {
	Mode Mode
}

// Server owns the loopback endpoint and hands delegation requests to the
// event loop.
type Server interface {
	// Start binds the first port of the configured range. A bind failure
	// usually means another resident is running.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 before Start.
	Port() int
	// Next returns the next accepted delegation request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one accepted client connection awaiting its response.
type Conn interface {
	Request() Request
	// RespondSuccess completes the request. For ModeStdout, text carries
	// the translation; for ModeClipboard it is empty.
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Client delegates a run-once invocation to a resident, if one exists.
type Client interface {
	// TryRunOnce scans the port range and delegates. delegated=false with
	// a nil error means no resident was found.
	TryRunOnce(ctx context.Context, mode Mode) (delegated bool, text string, err error)
}

func NewServer() Server { return newServer() }
func NewClient() Client { return newClient() }

const (
	defaultPortStart = 49500
	defaultPortEnd   = 49550
)

// PortRange returns the configured TCP scan range, for pre-flight checks
// and logging.
func PortRange() (int, int) { return portRange() }

// portRange returns the configured TCP scan range. Overridable through
// SINGLEINSTANCE_PORT_START / SINGLEINSTANCE_PORT_END, clamped to
// [1024, 65535].
func portRange() (int, int) {
	start := defaultPortStart
	end := defaultPortEnd
	if v := os.Getenv("SINGLEINSTANCE_PORT_START"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			start = n
		}
	}
	if v := os.Getenv("SINGLEINSTANCE_PORT_END"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			end = n
		}
	}
	if start < 1024 {
		start = 1024
	}
	if end > 65535 {
		end = 65535
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}
