// Package session holds mounted lessons: the committed state value, the
// pointer gesture, playback, frame scheduling and disposal.
package session

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

var (
	ErrDisposed    = errors.New("session disposed")
	ErrFailed      = errors.New("session failed to mount")
	ErrNotPlayable = errors.New("lesson has no playback")
)

// Gesture is the pointer state.
type Gesture string

const (
	Idle     Gesture = "idle"
	Dragging Gesture = "dragging"
)

// EventKind names what changed.
type EventKind string

const (
	EventValue   EventKind = "value"
	EventFrame   EventKind = "frame"
	EventPlay    EventKind = "play"
	EventPause   EventKind = "pause"
	EventResize  EventKind = "resize"
	EventDispose EventKind = "dispose"
)

// Event is delivered to subscribers after each change.
type Event struct {
	Kind    EventKind
	Value   float64
	Version uint64
}

// Listener receives session events. It is called without the session lock.
type Listener func(Event)

// Options configure a session.
type Options struct {
	Width, Height float64
	DPR           float64
	Frames        FrameScheduler
	Clock         Clock
	Now           func() time.Time
	Cache         *expr.Cache
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.DPR <= 0 {
		o.DPR = 1
	}
	if o.Frames == nil {
		o.Frames = NewManualFrames()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Clock = o.Clock.withDefaults()
	return o
}

// Session is one mounted lesson. All mutations recompute synchronously
// under the session lock, so observers see committed states in order.
type Session struct {
	mu   sync.Mutex
	id   string
	opts Options
	log  *zap.Logger

	tag     lesson.Type
	engine  interactions.Engine
	failure string

	value      float64
	scene      interactions.Scene
	reflection interactions.Reflection
	version    uint64

	gesture        Gesture
	windowHandlers int

	playing  bool
	lastTick time.Time

	frame    Token
	hasFrame bool

	listeners  map[int]Listener
	nextListen int

	width, height, dpr float64
	disposed           bool
}

// Mount builds a session for tag. A lesson that cannot be mounted still
// yields a session, in the failed state, together with the error.
func Mount(tag lesson.Type, cfg *lesson.Config, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	s := &Session{
		id:        uuid.NewString(),
		opts:      opts,
		tag:       tag,
		gesture:   Idle,
		listeners: make(map[int]Listener),
		width:     opts.Width,
		height:    opts.Height,
		dpr:       opts.DPR,
	}
	s.log = opts.Logger.With(zap.String("session", s.id), zap.String("type", string(tag)))

	eng, err := interactions.Mount(tag, cfg, interactions.Deps{Cache: opts.Cache, Logger: opts.Logger})
	if err != nil {
		s.failure = err.Error()
		s.log.Warn("mount failed", zap.Error(err))
		return s, err
	}
	s.engine = eng
	s.commitLocked(eng.Param().Start())
	return s, nil
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Type() lesson.Type { return s.tag }

// Failed returns the mount error message, or "".
func (s *Session) Failed() string { return s.failure }

// Engine returns the mounted engine, nil when failed.
func (s *Session) Engine() interactions.Engine { return s.engine }

func (s *Session) check() error {
	if s.disposed {
		return ErrDisposed
	}
	if s.engine == nil {
		return ErrFailed
	}
	return nil
}

// commitLocked clamps v, recomputes and re-evaluates the reflection.
func (s *Session) commitLocked(v float64) {
	p := s.engine.Param()
	v = p.Clamp(v)
	if sn, ok := s.engine.(interface{ Snap(float64) float64 }); ok {
		v = p.Clamp(sn.Snap(v))
	}
	s.value = v
	s.scene = s.engine.Recompute(v)
	s.reflection = s.engine.Reflect(s.scene)
	s.version++
	if _, ok := s.engine.(interactions.FrameAware); ok {
		s.requestFrameLocked()
	}
}

func (s *Session) requestFrameLocked() {
	if s.hasFrame {
		return
	}
	s.frame = s.opts.Frames.RequestFrame(s.onFrame)
	s.hasFrame = true
}

func (s *Session) cancelFrameLocked() {
	if s.hasFrame {
		s.opts.Frames.CancelFrame(s.frame)
		s.hasFrame = false
	}
}

func (s *Session) onFrame(now time.Time) {
	s.mu.Lock()
	s.hasFrame = false
	if s.disposed || s.engine == nil {
		s.mu.Unlock()
		return
	}
	changed := false
	if s.playing {
		ts := s.engine.Param()
		next, done := s.opts.Clock.Advance(s.value, ts.Max, now.Sub(s.lastTick))
		s.lastTick = now
		s.commitLocked(next)
		changed = true
		if done {
			s.playing = false
		} else {
			s.requestFrameLocked()
		}
	}
	if fa, ok := s.engine.(interactions.FrameAware); ok && fa.NextFrame() {
		s.reflection.Cards = cardsOf(s.engine, s.reflection.Cards)
		s.version++
		changed = true
	}
	ev := Event{Kind: EventFrame, Value: s.value, Version: s.version}
	ls := s.listenersLocked()
	s.mu.Unlock()
	if changed {
		notify(ls, ev)
	}
}

func cardsOf(e interactions.Engine, fallback []interactions.Card) []interactions.Card {
	if c, ok := e.(interface{ Cards() []interactions.Card }); ok {
		return c.Cards()
	}
	return fallback
}

func (s *Session) listenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextListen; i++ {
		if l, ok := s.listeners[i]; ok {
			out = append(out, l)
		}
	}
	return out
}

func notify(ls []Listener, ev Event) {
	for _, l := range ls {
		l(ev)
	}
}

// mutate runs fn under the lock and notifies listeners after.
func (s *Session) mutate(kind EventKind, fn func() error) error {
	return s.mutateAs(func() (EventKind, error) { return kind, fn() })
}

// mutateAs is mutate for changes whose event kind depends on the state
// read under the lock.
func (s *Session) mutateAs(fn func() (EventKind, error)) error {
	s.mu.Lock()
	if err := s.check(); err != nil {
		s.mu.Unlock()
		return err
	}
	kind, err := fn()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ev := Event{Kind: kind, Value: s.value, Version: s.version}
	ls := s.listenersLocked()
	s.mu.Unlock()
	notify(ls, ev)
	return nil
}

// Subscribe registers l and returns the function removing it.
func (s *Session) Subscribe(l Listener) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}, nil
}

// Value is the committed EngineState scalar.
func (s *Session) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetValue clamps and commits v.
func (s *Session) SetValue(v float64) error {
	return s.mutate(EventValue, func() error {
		s.commitLocked(v)
		return nil
	})
}

// PointerDown starts a drag at ratio of the track width and attaches the
// move and up handlers.
func (s *Session) PointerDown(ratio float64) error {
	return s.mutate(EventValue, func() error {
		if s.gesture == Idle {
			s.gesture = Dragging
			s.windowHandlers += 2
		}
		s.commitLocked(s.engine.Param().Lerp(ratio))
		return nil
	})
}

// PointerMove updates the value while dragging and is ignored otherwise.
func (s *Session) PointerMove(ratio float64) error {
	return s.mutate(EventValue, func() error {
		if s.gesture == Dragging {
			s.commitLocked(s.engine.Param().Lerp(ratio))
		}
		return nil
	})
}

// PointerUp ends the drag and detaches the handlers.
func (s *Session) PointerUp() error {
	return s.mutate(EventValue, func() error {
		s.endGestureLocked()
		return nil
	})
}

func (s *Session) endGestureLocked() {
	if s.gesture == Dragging {
		s.gesture = Idle
		s.windowHandlers -= 2
	}
}

// Gesture is the current pointer state.
func (s *Session) Gesture() Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gesture
}

// WindowHandlers counts the drag handlers currently attached.
func (s *Session) WindowHandlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowHandlers
}

func (s *Session) playable() error {
	if s.engine.Spec().Type != lesson.TypeMotion {
		return ErrNotPlayable
	}
	return nil
}

// Play starts playback, restarting from the beginning when at the end.
func (s *Session) Play() error {
	return s.mutate(EventPlay, func() error {
		if err := s.playable(); err != nil {
			return err
		}
		s.playLocked()
		return nil
	})
}

func (s *Session) playLocked() {
	p := s.engine.Param()
	if s.value >= p.Max {
		s.commitLocked(p.Min)
	}
	s.playing = true
	s.lastTick = s.opts.Now()
	s.requestFrameLocked()
}

// Pause stops playback at the current time.
func (s *Session) Pause() error {
	return s.mutate(EventPause, func() error {
		if err := s.playable(); err != nil {
			return err
		}
		s.playing = false
		s.cancelFrameLocked()
		return nil
	})
}

// Toggle flips between playing and paused.
func (s *Session) Toggle() error {
	return s.mutateAs(func() (EventKind, error) {
		if err := s.playable(); err != nil {
			return EventPlay, err
		}
		if s.playing {
			s.playing = false
			s.cancelFrameLocked()
			return EventPause, nil
		}
		s.playLocked()
		return EventPlay, nil
	})
}

// Playing reports whether playback is running.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Seek jumps to t without changing the play state.
func (s *Session) Seek(t float64) error {
	return s.mutate(EventValue, func() error {
		if err := s.playable(); err != nil {
			return err
		}
		s.commitLocked(t)
		s.lastTick = s.opts.Now()
		return nil
	})
}

// Resize changes the surface size. The next render uses the latest
// committed state.
func (s *Session) Resize(w, h, dpr float64) error {
	if w <= 0 || h <= 0 {
		return errors.New("size must be positive")
	}
	if dpr <= 0 {
		dpr = 1
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.width, s.height, s.dpr = w, h, dpr
	s.version++
	ev := Event{Kind: EventResize, Value: s.value, Version: s.version}
	ls := s.listenersLocked()
	s.mu.Unlock()
	notify(ls, ev)
	return nil
}

// Snapshot is a consistent view of the session.
type Snapshot struct {
	ID         string                  `json:"id"`
	Type       lesson.Type             `json:"type"`
	Slug       string                  `json:"slug,omitempty"`
	Error      string                  `json:"error,omitempty"`
	StateName  string                  `json:"stateName,omitempty"`
	Value      float64                 `json:"value"`
	Min        float64                 `json:"min"`
	Max        float64                 `json:"max"`
	Gesture    Gesture                 `json:"gesture"`
	Playing    bool                    `json:"playing"`
	Readouts   []interactions.Readout  `json:"readouts,omitempty"`
	Reflection interactions.Reflection `json:"reflection"`
	Scene      interactions.Scene      `json:"-"`
	Width      float64                 `json:"width"`
	Height     float64                 `json:"height"`
	DPR        float64                 `json:"dpr"`
	Version    uint64                  `json:"version"`
	Disposed   bool                    `json:"disposed,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID: s.id, Type: s.tag, Error: s.failure,
		Gesture: s.gesture, Playing: s.playing,
		Width: s.width, Height: s.height, DPR: s.dpr,
		Version: s.version, Disposed: s.disposed,
	}
	if s.engine == nil {
		return snap
	}
	p := s.engine.Param()
	snap.Slug = s.engine.Lesson().Slug
	snap.StateName = s.engine.Spec().StateName
	snap.Value, snap.Min, snap.Max = s.value, p.Min, p.Max
	snap.Readouts = s.scene.Readouts()
	snap.Reflection = s.reflection
	snap.Scene = s.scene
	return snap
}

// Render paints the committed state, or the error frame for a failed
// mount.
func (s *Session) Render(sf render.Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		render.Error(sf, s.failure)
		return
	}
	s.engine.Paint(sf, s.scene)
	interactions.PaintReflection(sf, s.reflection)
}

// PNG renders the current frame at the session's size and pixel ratio.
func (s *Session) PNG() ([]byte, error) {
	s.mu.Lock()
	w, h, dpr := s.width, s.height, s.dpr
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}
	r := render.NewRaster(int(w), int(h), dpr)
	s.Render(r)
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dispose cancels the pending frame and detaches every handler. Later
// calls are no-ops.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.playing = false
	s.cancelFrameLocked()
	s.endGestureLocked()
	ls := s.listenersLocked()
	s.listeners = make(map[int]Listener)
	ev := Event{Kind: EventDispose, Value: s.value, Version: s.version}
	s.mu.Unlock()
	notify(ls, ev)
	s.log.Debug("disposed")
}

// Disposed reports whether Dispose has run.
func (s *Session) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
