package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Token identifies a requested frame.
type Token uint64

// FrameScheduler runs callbacks on the next display frame.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) Token
	CancelFrame(tok Token)
}

type frameQueue struct {
	mu      sync.Mutex
	next    Token
	pending map[Token]func(time.Time)
}

func (q *frameQueue) request(fn func(time.Time)) Token {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[Token]func(time.Time))
	}
	q.next++
	q.pending[q.next] = fn
	return q.next
}

func (q *frameQueue) cancel(tok Token) {
	q.mu.Lock()
	delete(q.pending, tok)
	q.mu.Unlock()
}

// take removes and returns the callbacks due this frame in request order.
func (q *frameQueue) take() []func(time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	toks := make([]Token, 0, len(q.pending))
	for t := range q.pending {
		toks = append(toks, t)
	}
	sortTokens(toks)
	out := make([]func(time.Time), len(toks))
	for i, t := range toks {
		out[i] = q.pending[t]
		delete(q.pending, t)
	}
	return out
}

func (q *frameQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func sortTokens(ts []Token) {
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
}

// ManualFrames advances only when Step is called. Tests and the terminal
// player drive it directly.
type ManualFrames struct {
	q frameQueue
}

func NewManualFrames() *ManualFrames { return &ManualFrames{} }

func (m *ManualFrames) RequestFrame(fn func(time.Time)) Token { return m.q.request(fn) }
func (m *ManualFrames) CancelFrame(tok Token)                 { m.q.cancel(tok) }

// Step runs the callbacks pending at the time of the call. Frames requested
// by those callbacks wait for the next Step.
func (m *ManualFrames) Step(now time.Time) int {
	fns := m.q.take()
	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

// Pending is the number of outstanding requests.
func (m *ManualFrames) Pending() int { return m.q.size() }

// TickerFrames runs pending callbacks at a fixed rate until its context ends.
type TickerFrames struct {
	q        frameQueue
	interval time.Duration
}

// NewTickerFrames creates a scheduler ticking fps times per second.
func NewTickerFrames(fps int) *TickerFrames {
	if fps <= 0 {
		fps = 60
	}
	return &TickerFrames{interval: time.Second / time.Duration(fps)}
}

func (t *TickerFrames) RequestFrame(fn func(time.Time)) Token { return t.q.request(fn) }
func (t *TickerFrames) CancelFrame(tok Token)                 { t.q.cancel(tok) }

// Run ticks until ctx is done.
func (t *TickerFrames) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			for _, fn := range t.q.take() {
				fn(now)
			}
		}
	}
}
