package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"select-translate/src/clipboard"
	"select-translate/src/config"
	"select-translate/src/singleinstance"
	"select-translate/src/worker"
)

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

type recordedConn struct {
	req     singleinstance.Request
	success string
	errMsg  string
	closed  bool
}

func (c *recordedConn) Request() singleinstance.Request { return c.req }

func (c *recordedConn) RespondSuccess(text string) error {
	c.success = text
	return nil
}

func (c *recordedConn) RespondError(msg string) error {
	c.errMsg = msg
	return nil
}

func (c *recordedConn) Close() error {
	c.closed = true
	return nil
}

func TestPooledGatewayRoundTrip(t *testing.T) {
	pool := worker.New(1, func(ctx context.Context, text string) (string, error) {
		return text + "-zh", nil
	})
	defer pool.Close()
	g := &pooledGateway{pool: pool}

	got, err := g.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Hello-zh" {
		t.Errorf("got %q", got)
	}
}

func TestPooledGatewayPropagatesError(t *testing.T) {
	wantErr := errors.New("upstream down")
	pool := worker.New(1, func(ctx context.Context, text string) (string, error) {
		return "", wantErr
	})
	defer pool.Close()
	g := &pooledGateway{pool: pool}

	if _, err := g.Translate(context.Background(), "Hello"); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestPooledGatewayHonorsCancellation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	pool := worker.New(1, func(ctx context.Context, text string) (string, error) {
		<-block
		return "", nil
	})
	defer pool.Close()
	g := &pooledGateway{pool: pool}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := g.Translate(ctx, "Hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation observed too late")
	}
}

func TestDelegatedRejectedWhileClipboardOwned(t *testing.T) {
	b := &memBackend{text: "selection", hasText: true}
	med := clipboard.NewMediator(b)
	l := &Loop{med: med, cfg: &config.Config{TranslateDeadline: time.Second}}

	// A pipeline run holds ownership between its capture and restore.
	snap, err := med.SaveAndClear()
	if err != nil {
		t.Fatalf("SaveAndClear: %v", err)
	}

	conn := &recordedConn{req: singleinstance.Request{Mode: singleinstance.ModeClipboard}}
	l.handleDelegated(context.Background(), conn)

	if conn.errMsg == "" {
		t.Fatal("delegated request was not rejected while the clipboard was owned")
	}
	if text, _ := b.ReadText(); text != "" {
		t.Errorf("delegated request mutated an owned clipboard: %q", text)
	}
	if !conn.closed {
		t.Error("connection left open")
	}
	if err := med.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
}

func TestDelegatedEmptyClipboardReleasesOwnership(t *testing.T) {
	med := clipboard.NewMediator(&memBackend{})
	l := &Loop{med: med, cfg: &config.Config{TranslateDeadline: time.Second}}

	conn := &recordedConn{req: singleinstance.Request{Mode: singleinstance.ModeStdout}}
	l.handleDelegated(context.Background(), conn)

	if conn.errMsg == "" {
		t.Fatal("empty clipboard should be reported as an error")
	}
	if err := med.Acquire(); err != nil {
		t.Fatalf("ownership not released after delegation: %v", err)
	}
}

func TestTriggerNeverBlocks(t *testing.T) {
	l := &Loop{hotkeyCh: make(chan struct{}, 4)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			l.Trigger()
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked on a full channel")
	}
}
