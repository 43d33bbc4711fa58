// Package pipeline owns one capture-translate-replace run at a time: the
// select/copy capture, the outbound translation, the user confirmation and
// the paste-back, with unconditional clipboard restoration on every exit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"select-translate/src/caret"
	"select-translate/src/clipboard"
)

// State is a pipeline run's position in the machine. Failed and Cancelled
// are terminal; a successful run returns to Idle.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateCapturing
	StateTranslating
	StateAwaitingConfirm
	StateReplacing
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateCapturing:
		return "capturing"
	case StateTranslating:
		return "translating"
	case StateAwaitingConfirm:
		return "awaiting-confirm"
	case StateReplacing:
		return "replacing"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrorKind classifies a terminal run failure for the UI layer.
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindInputInjectionFailed
	ErrKindCopyTimeout
	ErrKindEmptySelection
	ErrKindSelectionTooLarge
	ErrKindTranslationFailed
	ErrKindReplaceFailed
	ErrKindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNone:
		return "none"
	case ErrKindInputInjectionFailed:
		return "input-injection-failed"
	case ErrKindCopyTimeout:
		return "copy-timeout"
	case ErrKindEmptySelection:
		return "empty-selection"
	case ErrKindSelectionTooLarge:
		return "selection-too-large"
	case ErrKindTranslationFailed:
		return "translation-failed"
	case ErrKindReplaceFailed:
		return "replace-failed"
	case ErrKindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("error-kind(%d)", int(k))
	}
}

// RunError is the single terminal outcome surfaced for a failed or
// cancelled run.
type RunError struct {
	Kind ErrorKind
	Err  error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Decision is the user's answer to a shown translation.
type Decision int

const (
	DecisionConfirm Decision = iota
	DecisionDismiss
)

// Mediator is the clipboard protocol the run drives. Satisfied by
// *clipboard.Mediator.
type Mediator interface {
	SaveAndClear() (clipboard.Snapshot, error)
	Write(text string) error
	ReadWithTimeout(ctx context.Context, timeout time.Duration) (string, error)
	Restore(snap clipboard.Snapshot) error
}

// Driver issues the synthetic key chords. Satisfied by input.Driver.
type Driver interface {
	SendSelectAll() error
	SendCopy() error
	SendPaste() error
}

// Gateway performs the translation call. Satisfied by *translate.Gateway.
type Gateway interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Confirmer presents a finished translation near the caret. Decisions come
// back through Run.Confirm / Run.Dismiss, not through this interface.
type Confirmer interface {
	Show(anchor caret.Anchor, source, translated string)
	Close()
}

// Options wires a run's collaborators. Zero timeouts get defaults.
type Options struct {
	Mediator  Mediator
	Driver    Driver
	Gateway   Gateway
	Confirmer Confirmer
	Probe     func() caret.Anchor

	AutoConfirm       bool
	MaxSelectionBytes int
	CopyTimeout       time.Duration
	TranslateDeadline time.Duration

	// OnState is invoked from the run goroutine on every transition.
	OnState func(runID uint64, s State)
	// OnFinished is invoked once when the run reaches a terminal outcome,
	// after clipboard restoration.
	OnFinished func(r *Run)
}

const (
	defaultMaxSelectionBytes = 32 * 1024
	defaultCopyTimeout       = 2 * time.Second
	defaultTranslateDeadline = 15 * time.Second
)

// Run is one end-to-end pipeline execution. At most one run is non-terminal
// at any instant; the Orchestrator enforces that.
type Run struct {
	id        uint64
	opts      *Options
	ctx       context.Context
	cancel    context.CancelFunc
	decCh     chan Decision
	done      chan struct{}
	startedAt time.Time

	mu         sync.Mutex
	state      State
	finished   bool
	selected   string
	translated string
	runErr     *RunError
	snapshot   *clipboard.Snapshot
	anchor     caret.Anchor
}

func (r *Run) ID() uint64             { return r.id }
func (r *Run) Done() <-chan struct{}  { return r.done }
func (r *Run) StartedAt() time.Time   { return r.startedAt }
func (r *Run) Anchor() caret.Anchor   { r.mu.Lock(); defer r.mu.Unlock(); return r.anchor }
func (r *Run) SelectedText() string   { r.mu.Lock(); defer r.mu.Unlock(); return r.selected }
func (r *Run) TranslatedText() string { r.mu.Lock(); defer r.mu.Unlock(); return r.translated }

// State returns the current machine state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the terminal outcome, nil while active or on success.
func (r *Run) Err() *RunError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// Finished reports whether the run reached a terminal outcome.
func (r *Run) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Confirm delivers a user confirmation. Returns false when the run is not
// waiting for one.
func (r *Run) Confirm() bool { return r.deliver(DecisionConfirm) }

// Dismiss delivers an explicit dismissal.
func (r *Run) Dismiss() bool { return r.deliver(DecisionDismiss) }

// Cancel requests cancellation; the run settles through its restoration
// exit action before Done is closed.
func (r *Run) Cancel() { r.cancel() }

func (r *Run) deliver(d Decision) bool {
	if r.State() != StateAwaitingConfirm {
		return false
	}
	select {
	case r.decCh <- d:
		return true
	default:
		return false
	}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.opts.OnState != nil {
		r.opts.OnState(r.id, s)
	}
}

func (r *Run) fail(kind ErrorKind, err error) {
	r.mu.Lock()
	r.runErr = &RunError{Kind: kind, Err: err}
	r.state = StateFailed
	r.mu.Unlock()
	if r.opts.OnState != nil {
		r.opts.OnState(r.id, StateFailed)
	}
	log.Printf("pipeline: run %d failed: %s", r.id, r.runErr)
}

func (r *Run) toCancelled() {
	r.mu.Lock()
	r.runErr = &RunError{Kind: ErrKindCancelled}
	r.state = StateCancelled
	r.mu.Unlock()
	if r.opts.OnState != nil {
		r.opts.OnState(r.id, StateCancelled)
	}
	log.Printf("pipeline: run %d cancelled", r.id)
}

func (r *Run) succeed() {
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()
	if r.opts.OnState != nil {
		r.opts.OnState(r.id, StateIdle)
	}
}

// execute walks the machine. Every return path passes through the deferred
// restoration exit action; that is the pipeline's core safety invariant.
func (r *Run) execute() {
	opts := r.opts
	defer close(r.done)
	defer func() {
		r.mu.Lock()
		r.finished = true
		r.mu.Unlock()
		if opts.OnFinished != nil {
			opts.OnFinished(r)
		}
	}()
	defer func() {
		r.mu.Lock()
		snap := r.snapshot
		r.mu.Unlock()
		if snap == nil {
			return
		}
		if err := opts.Mediator.Restore(*snap); err != nil {
			// Double failure: the user's original clipboard is best effort.
			log.Printf("pipeline: run %d: clipboard restore failed: %v", r.id, err)
		}
	}()

	if opts.Probe != nil {
		a := opts.Probe()
		r.mu.Lock()
		r.anchor = a
		r.mu.Unlock()
	}

	// Ownership is taken before the copy chord fires so ReadWithTimeout can
	// detect the new content arriving on a cleared clipboard.
	snap, err := opts.Mediator.SaveAndClear()
	if err != nil {
		r.fail(ErrKindReplaceFailed, fmt.Errorf("save clipboard: %w", err))
		return
	}
	r.mu.Lock()
	r.snapshot = &snap
	r.mu.Unlock()

	r.setState(StateSelecting)
	if err := opts.Driver.SendSelectAll(); err != nil {
		r.fail(ErrKindInputInjectionFailed, err)
		return
	}
	if err := opts.Driver.SendCopy(); err != nil {
		r.fail(ErrKindInputInjectionFailed, err)
		return
	}
	if r.ctx.Err() != nil {
		r.toCancelled()
		return
	}

	r.setState(StateCapturing)
	text, err := opts.Mediator.ReadWithTimeout(r.ctx, opts.CopyTimeout)
	if err != nil {
		if r.ctx.Err() != nil {
			r.toCancelled()
			return
		}
		r.fail(ErrKindCopyTimeout, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		r.fail(ErrKindEmptySelection, errors.New("selection empty or whitespace"))
		return
	}
	if len(text) > opts.MaxSelectionBytes {
		r.fail(ErrKindSelectionTooLarge, fmt.Errorf("selection is %d bytes, cap %d", len(text), opts.MaxSelectionBytes))
		return
	}
	r.mu.Lock()
	r.selected = text
	r.mu.Unlock()

	r.setState(StateTranslating)
	tctx, tcancel := context.WithTimeout(r.ctx, opts.TranslateDeadline)
	translated, err := opts.Gateway.Translate(tctx, text)
	tcancel()
	if err != nil {
		if r.ctx.Err() != nil {
			r.toCancelled()
			return
		}
		r.fail(ErrKindTranslationFailed, err)
		return
	}
	r.mu.Lock()
	r.translated = translated
	r.mu.Unlock()

	r.setState(StateAwaitingConfirm)
	if !opts.AutoConfirm {
		if opts.Confirmer != nil {
			opts.Confirmer.Show(r.Anchor(), text, translated)
		}
		select {
		case d := <-r.decCh:
			if opts.Confirmer != nil {
				opts.Confirmer.Close()
			}
			if d == DecisionDismiss {
				r.toCancelled()
				return
			}
		case <-r.ctx.Done():
			if opts.Confirmer != nil {
				opts.Confirmer.Close()
			}
			r.toCancelled()
			return
		}
	}

	r.setState(StateReplacing)
	if err := opts.Mediator.Write(translated); err != nil {
		r.fail(ErrKindReplaceFailed, err)
		return
	}
	if err := opts.Driver.SendPaste(); err != nil {
		r.fail(ErrKindReplaceFailed, err)
		return
	}
	r.succeed()
}

// Orchestrator owns at most one active Run. A trigger while a run is active
// follows the cancel-and-restart policy: the active run is cancelled (or
// implicitly confirmed when it is awaiting confirmation), settles through
// its restoration exit action, and a fresh run starts.
type Orchestrator struct {
	opts   Options
	nextID atomic.Uint64

	mu     sync.Mutex
	active *Run
}

// NewOrchestrator validates options and applies defaults.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.MaxSelectionBytes <= 0 {
		opts.MaxSelectionBytes = defaultMaxSelectionBytes
	}
	if opts.CopyTimeout <= 0 {
		opts.CopyTimeout = defaultCopyTimeout
	}
	if opts.TranslateDeadline <= 0 {
		opts.TranslateDeadline = defaultTranslateDeadline
	}
	return &Orchestrator{opts: opts}
}

// Trigger handles one hotkey event and returns the freshly started run.
// It blocks only while a superseded run tears down, which is bounded by the
// run's own timeouts.
func (o *Orchestrator) Trigger(ctx context.Context) *Run {
	o.mu.Lock()
	if prev := o.active; prev != nil && !prev.Finished() {
		// Re-trigger during AwaitingConfirm means "take the result and go
		// again"; everywhere else it supersedes the run outright.
		if !prev.Confirm() {
			prev.Cancel()
		}
		o.mu.Unlock()
		<-prev.Done()
		o.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:        o.nextID.Add(1),
		opts:      &o.opts,
		ctx:       runCtx,
		cancel:    cancel,
		decCh:     make(chan Decision, 1),
		done:      make(chan struct{}),
		startedAt: time.Now(),
		state:     StateIdle,
	}
	o.active = r
	o.mu.Unlock()

	go r.execute()
	return r
}

// Active returns the current run, which may already be terminal.
func (o *Orchestrator) Active() *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// CancelActive cancels the active run, if any, and waits for its teardown.
func (o *Orchestrator) CancelActive() {
	o.mu.Lock()
	prev := o.active
	o.mu.Unlock()
	if prev == nil || prev.Finished() {
		return
	}
	prev.Cancel()
	<-prev.Done()
}
