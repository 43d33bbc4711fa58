package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"select-translate/src/caret"
	"select-translate/src/clipboard"
)

// memBackend is an in-memory clipboard shared by the mediator and the fake
// driver, standing in for the OS clipboard plus the focused input field.
type memBackend struct {
	mu      sync.Mutex
	text    string
	hasText bool
}

func (b *memBackend) ReadText() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, b.hasText
}

func (b *memBackend) WriteText(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
	b.hasText = true
	return nil
}

// fakeDriver simulates the focused application: SendCopy places the
// "selected" text on the clipboard, SendPaste records what would land in
// the input field.
type fakeDriver struct {
	backend  *memBackend
	copyText string
	copyNoop bool

	selectErr error
	copyErr   error
	pasteErr  error

	mu     sync.Mutex
	pasted []string
}

func (d *fakeDriver) SendSelectAll() error { return d.selectErr }

func (d *fakeDriver) SendCopy() error {
	if d.copyErr != nil {
		return d.copyErr
	}
	if !d.copyNoop {
		_ = d.backend.WriteText(d.copyText)
	}
	return nil
}

func (d *fakeDriver) SendPaste() error {
	if d.pasteErr != nil {
		return d.pasteErr
	}
	text, _ := d.backend.ReadText()
	d.mu.Lock()
	d.pasted = append(d.pasted, text)
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) pastedTexts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.pasted...)
}

type fakeConfirmer struct {
	shown chan struct{}

	mu       sync.Mutex
	closes   int
	lastSrc  string
	lastDst  string
	lastAnch caret.Anchor
}

func newFakeConfirmer() *fakeConfirmer {
	return &fakeConfirmer{shown: make(chan struct{}, 4)}
}

func (c *fakeConfirmer) Show(anchor caret.Anchor, source, translated string) {
	c.mu.Lock()
	c.lastAnch, c.lastSrc, c.lastDst = anchor, source, translated
	c.mu.Unlock()
	c.shown <- struct{}{}
}

func (c *fakeConfirmer) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

type gatewayFunc func(ctx context.Context, text string) (string, error)

func (f gatewayFunc) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (s *stateRecorder) record(_ uint64, st State) {
	s.mu.Lock()
	s.states = append(s.states, st)
	s.mu.Unlock()
}

func (s *stateRecorder) all() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

type rig struct {
	backend *memBackend
	driver  *fakeDriver
	conf    *fakeConfirmer
	states  *stateRecorder
	opts    Options
}

func newRig(gw gatewayFunc) *rig {
	b := &memBackend{text: "original", hasText: true}
	d := &fakeDriver{backend: b, copyText: "Hello"}
	c := newFakeConfirmer()
	s := &stateRecorder{}
	return &rig{
		backend: b,
		driver:  d,
		conf:    c,
		states:  s,
		opts: Options{
			Mediator:          clipboard.NewMediator(b),
			Driver:            d,
			Gateway:           gw,
			Confirmer:         c,
			Probe:             func() caret.Anchor { return caret.Anchor{X: 100, Y: 200, Valid: true, Source: caret.SourceFallback} },
			CopyTimeout:       500 * time.Millisecond,
			TranslateDeadline: 2 * time.Second,
			OnState:           s.record,
		},
	}
}

func waitDone(t *testing.T, r *Run) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func wantKind(t *testing.T, r *Run, kind ErrorKind) {
	t.Helper()
	err := r.Err()
	if err == nil {
		t.Fatalf("run succeeded, want %s failure", kind)
	}
	if err.Kind != kind {
		t.Fatalf("error kind = %s, want %s (%v)", err.Kind, kind, err)
	}
}

func wantRestored(t *testing.T, b *memBackend) {
	t.Helper()
	if text, _ := b.ReadText(); text != "original" {
		t.Errorf("clipboard after run = %q, want restored original", text)
	}
}

func TestHappyPathConfirm(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	select {
	case <-rig.conf.shown:
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation was never shown")
	}
	if !r.Confirm() {
		t.Fatal("Confirm rejected while awaiting confirmation")
	}
	waitDone(t, r)

	if err := r.Err(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	pasted := rig.driver.pastedTexts()
	if len(pasted) != 1 || pasted[0] != "你好" {
		t.Errorf("pasted = %v, want [你好]", pasted)
	}
	wantRestored(t, rig.backend)

	want := []State{StateSelecting, StateCapturing, StateTranslating, StateAwaitingConfirm, StateReplacing, StateIdle}
	got := rig.states.all()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
	if r.SelectedText() != "Hello" || r.TranslatedText() != "你好" {
		t.Errorf("texts = %q -> %q", r.SelectedText(), r.TranslatedText())
	}
}

func TestAutoConfirmSkipsPopup(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	rig.opts.AutoConfirm = true
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	if err := r.Err(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if pasted := rig.driver.pastedTexts(); len(pasted) != 1 || pasted[0] != "你好" {
		t.Errorf("pasted = %v", pasted)
	}
	select {
	case <-rig.conf.shown:
		t.Error("popup shown despite auto-confirm")
	default:
	}
	wantRestored(t, rig.backend)
}

func TestDismissCancelsWithoutPaste(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	<-rig.conf.shown
	if !r.Dismiss() {
		t.Fatal("Dismiss rejected while awaiting confirmation")
	}
	waitDone(t, r)

	wantKind(t, r, ErrKindCancelled)
	if pasted := rig.driver.pastedTexts(); len(pasted) != 0 {
		t.Errorf("pasted = %v, want none", pasted)
	}
	wantRestored(t, rig.backend)
}

func TestEmptySelectionShortCircuits(t *testing.T) {
	calls := 0
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		calls++
		return "你好", nil
	})
	rig.driver.copyText = "   \n\t"
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindEmptySelection)
	if calls != 0 {
		t.Errorf("gateway called %d times for empty selection", calls)
	}
	wantRestored(t, rig.backend)
}

func TestCopyTimeout(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	rig.driver.copyNoop = true
	rig.opts.CopyTimeout = 50 * time.Millisecond
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindCopyTimeout)
	if !errors.Is(r.Err(), clipboard.ErrCopyTimeout) {
		t.Errorf("err = %v, want wrapped ErrCopyTimeout", r.Err())
	}
	wantRestored(t, rig.backend)
}

func TestSelectionTooLarge(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	rig.driver.copyText = strings.Repeat("x", 100)
	rig.opts.MaxSelectionBytes = 64
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindSelectionTooLarge)
	wantRestored(t, rig.backend)
}

func TestInjectionFailureIsFatal(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "你好", nil
	})
	rig.driver.selectErr = errors.New("uipi blocked")
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindInputInjectionFailed)
	wantRestored(t, rig.backend)
}

func TestTranslationFailure(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return "", errors.New("upstream down")
	})
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindTranslationFailed)
	if pasted := rig.driver.pastedTexts(); len(pasted) != 0 {
		t.Errorf("pasted = %v, want none", pasted)
	}
	wantRestored(t, rig.backend)
}

func TestTranslateDeadline(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	rig.opts.TranslateDeadline = 50 * time.Millisecond
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	waitDone(t, r)

	wantKind(t, r, ErrKindTranslationFailed)
	if !errors.Is(r.Err(), context.DeadlineExceeded) {
		t.Errorf("err = %v, want wrapped deadline exceeded", r.Err())
	}
	wantRestored(t, rig.backend)
}

func TestRetriggerCancelsActiveRun(t *testing.T) {
	entered := make(chan struct{}, 2)
	calls := 0
	var mu sync.Mutex
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		entered <- struct{}{}
		if first {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "你好", nil
	})
	rig.opts.AutoConfirm = true
	o := NewOrchestrator(rig.opts)

	a := o.Trigger(context.Background())
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached the gateway")
	}

	b := o.Trigger(context.Background())
	// Trigger only returns after the superseded run settled.
	if !a.Finished() {
		t.Error("previous run still active after re-trigger returned")
	}
	wantKind(t, a, ErrKindCancelled)

	waitDone(t, b)
	if err := b.Err(); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	// The cancelled run must not have written anything to the field.
	if pasted := rig.driver.pastedTexts(); len(pasted) != 1 || pasted[0] != "你好" {
		t.Errorf("pasted = %v, want exactly the second run's output", pasted)
	}
	wantRestored(t, rig.backend)
}

func TestRetriggerDuringConfirmImpliesConfirm(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		return text + "-zh", nil
	})
	o := NewOrchestrator(rig.opts)

	a := o.Trigger(context.Background())
	select {
	case <-rig.conf.shown:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached confirmation")
	}

	b := o.Trigger(context.Background())
	if err := a.Err(); err != nil {
		t.Fatalf("superseded run should have been confirmed, got %v", err)
	}
	if pasted := rig.driver.pastedTexts(); len(pasted) != 1 || pasted[0] != "Hello-zh" {
		t.Errorf("pasted = %v, want the first run's result", pasted)
	}

	<-rig.conf.shown
	b.Dismiss()
	waitDone(t, b)
	wantKind(t, b, ErrKindCancelled)
	wantRestored(t, rig.backend)
}

func TestCancelActive(t *testing.T) {
	rig := newRig(func(ctx context.Context, text string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := NewOrchestrator(rig.opts)

	r := o.Trigger(context.Background())
	time.Sleep(20 * time.Millisecond)
	o.CancelActive()

	wantKind(t, r, ErrKindCancelled)
	wantRestored(t, rig.backend)
	// Idempotent on a settled run.
	o.CancelActive()
}
