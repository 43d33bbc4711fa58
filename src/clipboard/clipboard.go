package clipboard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	xclip "golang.design/x/clipboard"
)

// Format describes what the clipboard held when a snapshot was taken.
type Format int

const (
	FormatText Format = iota
	// FormatUnsupported marks non-text content (images etc). It cannot be
	// restored through the text API; restore degrades to clearing.
	FormatUnsupported
)

// Snapshot is the clipboard state saved before a pipeline run mutates it.
type Snapshot struct {
	Text       string
	Format     Format
	CapturedAt time.Time
}

var (
	// ErrBusy means another caller holds clipboard ownership between
	// SaveAndClear and Restore.
	ErrBusy = errors.New("clipboard: already owned by an active run")
	// ErrNotOwned means a mutating call was made without holding ownership.
	ErrNotOwned = errors.New("clipboard: mutation without ownership")
	// ErrCopyTimeout means no new clipboard content appeared before the
	// read deadline after a synthetic copy.
	ErrCopyTimeout = errors.New("clipboard: copy timeout")
)

// Backend is the raw text read/write pair underneath the mediator. The
// default is the system clipboard; tests substitute an in-memory fake.
type Backend interface {
	// ReadText returns the clipboard text and whether text content was present.
	ReadText() (string, bool)
	WriteText(text string) error
}

type systemBackend struct{}

func (systemBackend) ReadText() (string, bool) {
	b := xclip.Read(xclip.FmtText)
	if b == nil {
		return "", false
	}
	return string(b), true
}

func (systemBackend) WriteText(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	xclip.Write(xclip.FmtText, []byte(text))
	return nil
}

// Init must be called once before any system clipboard access.
func Init() error {
	return xclip.Init()
}

var writeMu sync.Mutex

// Mediator serializes all clipboard access. Exactly one caller may hold
// ownership at a time, taken either through SaveAndClear (pipeline runs)
// or Acquire (run-once delegation), which is what keeps at most one
// unrestored snapshot in existence and keeps delegated writes from landing
// on a clipboard a run has just cleared.
type Mediator struct {
	backend Backend

	mu    sync.Mutex
	owned bool

	pollStart time.Duration
	pollCap   time.Duration
}

// NewMediator creates a mediator over the given backend, or the system
// clipboard when backend is nil.
func NewMediator(backend Backend) *Mediator {
	if backend == nil {
		backend = systemBackend{}
	}
	return &Mediator{
		backend:   backend,
		pollStart: 10 * time.Millisecond,
		pollCap:   250 * time.Millisecond,
	}
}

// Acquire takes clipboard ownership without snapshotting, for callers that
// read or write the clipboard outside a pipeline run. Pair with Release.
func (m *Mediator) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owned {
		return ErrBusy
	}
	m.owned = true
	return nil
}

// Release gives ownership back without touching the clipboard content.
func (m *Mediator) Release() { m.release() }

// ReadText returns the current clipboard text, if any.
func (m *Mediator) ReadText() (string, bool) {
	return m.backend.ReadText()
}

// SaveAndClear takes clipboard ownership, snapshots the current content and
// clears it so a later ReadWithTimeout can detect the synthetic copy landing.
func (m *Mediator) SaveAndClear() (Snapshot, error) {
	if err := m.Acquire(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{CapturedAt: time.Now()}
	if text, ok := m.backend.ReadText(); ok {
		snap.Text = text
		snap.Format = FormatText
	} else {
		snap.Format = FormatUnsupported
	}

	if err := m.backend.WriteText(""); err != nil {
		m.release()
		return Snapshot{}, err
	}
	return snap, nil
}

// Write replaces the clipboard content. The caller must hold ownership,
// taken through SaveAndClear or Acquire.
func (m *Mediator) Write(text string) error {
	m.mu.Lock()
	owned := m.owned
	m.mu.Unlock()
	if !owned {
		return ErrNotOwned
	}
	return m.backend.WriteText(text)
}

// ReadWithTimeout polls the clipboard until non-empty text appears (the
// synthetic copy is asynchronous from the OS's point of view) or the timeout
// elapses. Polling backs off from 10ms up to 250ms between reads.
func (m *Mediator) ReadWithTimeout(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	wait := m.pollStart
	for {
		if text, ok := m.backend.ReadText(); ok && text != "" {
			return text, nil
		}
		if !time.Now().Before(deadline) {
			return "", ErrCopyTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
		wait = wait * 3 / 2
		if wait > m.pollCap {
			wait = m.pollCap
		}
	}
}

// Restore writes the snapshot back and releases ownership. Unsupported
// snapshots cannot be reproduced through the text API; the clipboard is
// cleared so translated text does not linger.
func (m *Mediator) Restore(snap Snapshot) error {
	m.mu.Lock()
	if !m.owned {
		m.mu.Unlock()
		return ErrNotOwned
	}
	m.mu.Unlock()
	defer m.release()

	text := snap.Text
	if snap.Format == FormatUnsupported {
		log.Printf("clipboard: original content was not text, clearing instead of restoring")
		text = ""
	}
	return m.backend.WriteText(text)
}

func (m *Mediator) release() {
	m.mu.Lock()
	m.owned = false
	m.mu.Unlock()
}
