// Package eventloop is the single-threaded coordinator: hotkey triggers,
// pipeline lifecycle, delegated run-once requests, tray state and history
// recording all meet here.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"select-translate/src/caret"
	"select-translate/src/clipboard"
	"select-translate/src/config"
	"select-translate/src/history"
	"select-translate/src/hotkey"
	"select-translate/src/input"
	"select-translate/src/notification"
	"select-translate/src/pipeline"
	"select-translate/src/popup"
	"select-translate/src/singleinstance"
	"select-translate/src/translate"
	"select-translate/src/tray"
	"select-translate/src/worker"
)

// Loop owns the orchestrator and serializes everything around it.
type Loop struct {
	cfg  *config.Config
	gw   *translate.Gateway
	med  *clipboard.Mediator
	pool *worker.Pool
	pop  popup.Controller
	hist *history.DB
	orch *pipeline.Orchestrator
	srv  singleinstance.Server

	hotkeyCh chan struct{}
	stateCh  chan pipeline.State
	finished chan *pipeline.Run
}

// New wires the loop. hist may be nil when history is disabled or failed to
// open.
func New(cfg *config.Config, gw *translate.Gateway, hist *history.DB) *Loop {
	l := &Loop{
		cfg:      cfg,
		gw:       gw,
		med:      clipboard.NewMediator(nil),
		pool:     worker.New(1, gw.Translate),
		pop:      popup.New(cfg.AutoConfirm),
		hist:     hist,
		hotkeyCh: make(chan struct{}, 4),
		stateCh:  make(chan pipeline.State, 16),
		finished: make(chan *pipeline.Run, 4),
	}

	l.orch = pipeline.NewOrchestrator(pipeline.Options{
		Mediator:          l.med,
		Driver:            input.NewDriver(),
		Gateway:           &pooledGateway{pool: l.pool},
		Confirmer:         &confirmAdapter{loop: l},
		Probe:             caret.Probe,
		AutoConfirm:       cfg.AutoConfirm,
		MaxSelectionBytes: cfg.MaxSelectionBytes,
		CopyTimeout:       cfg.CopyTimeout,
		TranslateDeadline: cfg.TranslateDeadline,
		OnState:           l.postState,
		OnFinished:        l.postFinished,
	})
	return l
}

// Trigger posts a hotkey-equivalent event. Safe from any goroutine; drops
// when the loop is backed up.
func (l *Loop) Trigger() {
	select {
	case l.hotkeyCh <- struct{}{}:
	default:
	}
}

// StartHotkey registers the global hotkey and posts events into the loop.
func (l *Loop) StartHotkey(combo string) error {
	if combo == "" {
		return nil
	}
	return hotkey.Listen(combo, l.Trigger)
}

// ShowStats surfaces the history summary, for the tray menu.
func (l *Loop) ShowStats() {
	if l.hist == nil {
		notification.ShowBlockingError("History", "History is disabled.")
		return
	}
	s, err := l.hist.Stats()
	if err != nil {
		notification.ShowBlockingError("History", fmt.Sprintf("Failed to read history: %v", err))
		return
	}
	notification.ShowBlockingError("History",
		fmt.Sprintf("%d runs, %d successful, mean latency %.0f ms", s.TotalRuns, s.SuccessCount, s.AvgLatencyMs))
}

// Run starts the singleinstance server and processes events until ctx is
// cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.srv = singleinstance.NewServer()
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	if p := l.srv.Port(); p > 0 {
		log.Printf("eventloop: resident listening on 127.0.0.1:%d", p)
	}
	defer l.pool.Close()
	defer l.orch.CancelActive()

	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				close(reqCh)
				return
			}
			reqCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.hotkeyCh:
			l.orch.Trigger(ctx)
		case s := <-l.stateCh:
			l.handleState(s)
		case r := <-l.finished:
			l.handleFinished(r)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			go l.handleDelegated(ctx, conn)
		}
	}
}

func (l *Loop) postState(_ uint64, s pipeline.State) {
	select {
	case l.stateCh <- s:
	default:
	}
}

func (l *Loop) postFinished(r *pipeline.Run) {
	select {
	case l.finished <- r:
	default:
		log.Printf("eventloop: finished channel full, dropping run %d record", r.ID())
	}
}

func (l *Loop) handleState(s pipeline.State) {
	switch s {
	case pipeline.StateSelecting:
		tray.SetBusy(true)
		if r := l.orch.Active(); r != nil {
			l.pop.ShowPending(r.Anchor())
		}
	case pipeline.StateIdle, pipeline.StateFailed, pipeline.StateCancelled:
		tray.SetBusy(false)
	}
}

func (l *Loop) handleFinished(r *pipeline.Run) {
	tray.SetBusy(false)
	if err := r.Err(); err != nil {
		log.Printf("eventloop: run %d finished: %s", r.ID(), err)
	} else {
		log.Printf("eventloop: run %d finished ok (%d -> %d bytes)",
			r.ID(), len(r.SelectedText()), len(r.TranslatedText()))
	}
	l.recordRun(r)
}

func (l *Loop) recordRun(r *pipeline.Run) {
	if l.hist == nil {
		return
	}
	rec := &history.Run{
		Provider:        l.cfg.Provider,
		SourceLang:      l.cfg.SourceLang,
		TargetLang:      l.gw.TargetLang(r.SelectedText()),
		SourceBytes:     len(r.SelectedText()),
		TranslatedBytes: len(r.TranslatedText()),
		LatencyMs:       time.Since(r.StartedAt()).Milliseconds(),
		Outcome:         "success",
	}
	if err := r.Err(); err != nil {
		rec.ErrorKind = err.Kind.String()
		if err.Kind == pipeline.ErrKindCancelled {
			rec.Outcome = "cancelled"
		} else {
			rec.Outcome = "failed"
		}
	}
	if err := l.hist.SaveRun(rec); err != nil {
		log.Printf("eventloop: failed to record run: %v", err)
	}
}

// handleDelegated translates the resident clipboard for a run-once client.
// It bypasses the pipeline (nothing is selected or pasted) but still takes
// mediator ownership, so it cannot land a write on a clipboard a run has
// just cleared for its capture.
func (l *Loop) handleDelegated(ctx context.Context, conn singleinstance.Conn) {
	defer conn.Close()

	if err := l.med.Acquire(); err != nil {
		_ = conn.RespondError("busy: a translation run is in progress")
		return
	}
	defer l.med.Release()

	text, ok := l.med.ReadText()
	if !ok || text == "" {
		_ = conn.RespondError("clipboard has no text")
		return
	}

	tctx, cancel := context.WithTimeout(ctx, l.cfg.TranslateDeadline)
	defer cancel()
	translated, err := l.gw.Translate(tctx, text)
	if err != nil {
		_ = conn.RespondError(err.Error())
		return
	}

	if conn.Request().Mode == singleinstance.ModeStdout {
		_ = conn.RespondSuccess(translated)
		return
	}
	if err := l.med.Write(translated); err != nil {
		_ = conn.RespondError(fmt.Sprintf("clipboard write failed: %v", err))
		return
	}
	_ = conn.RespondSuccess("")
}

// pooledGateway funnels pipeline translation calls through the worker pool
// so back-pressure and completion logging live in one place.
type pooledGateway struct {
	pool *worker.Pool
}

func (g *pooledGateway) Translate(ctx context.Context, text string) (string, error) {
	type res struct {
		text string
		err  error
	}
	ch := make(chan res, 1)
	if !g.pool.Submit(ctx, text, func(translated string, err error) {
		ch <- res{translated, err}
	}) {
		return "", errors.New("translation queue full")
	}
	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// confirmAdapter forwards popup decisions to whichever run is awaiting
// confirmation.
type confirmAdapter struct {
	loop *Loop
}

func (a *confirmAdapter) Show(anchor caret.Anchor, source, translated string) {
	run := a.loop.orch.Active()
	ch := a.loop.pop.ShowResult(anchor, source, translated)
	go func() {
		d, ok := <-ch
		if !ok || run == nil {
			return
		}
		switch d {
		case popup.DecisionConfirm:
			run.Confirm()
		case popup.DecisionDismiss:
			run.Dismiss()
		}
	}()
}

func (a *confirmAdapter) Close() {
	a.loop.pop.Close()
}
