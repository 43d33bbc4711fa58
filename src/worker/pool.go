package worker

import (
	"context"
	"log"
	"sync"
)

// TranslateFunc performs one translation request.
type TranslateFunc func(ctx context.Context, text string) (string, error)

// ResultCallback is invoked on completion from a worker goroutine. The event
// loop should pass a closure that posts back into the loop safely.
type ResultCallback func(translated string, err error)

// Pool is a fixed-size translation worker pool with a 1-slot input queue
// (strict back-pressure). The pipeline runs one job at a time, so the queue
// never needs more depth; a full queue means the caller is misbehaving.
type Pool struct {
	translate TranslateFunc
	jobs      chan job
	wg        sync.WaitGroup
}

type job struct {
	ctx  context.Context
	text string
	cb   ResultCallback
}

// New creates a worker pool around the given translate function. Size
// defaults to 1 when size<=0.
func New(size int, translate TranslateFunc) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{translate: translate, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				if err := j.ctx.Err(); err != nil {
					j.cb("", err)
					continue
				}
				translated, err := p.translate(j.ctx, j.text)
				log.Printf("worker: translation done, in=%d out=%d err=%v", len(j.text), len(translated), err)
				j.cb(translated, err)
			}
		}()
	}
}

// Submit enqueues a translation if the single-slot queue is free. Returns
// false if dropped.
func (p *Pool) Submit(ctx context.Context, text string, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, text: text, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
