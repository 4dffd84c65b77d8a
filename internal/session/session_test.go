package session

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/render"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newMotion(t *testing.T) (*Session, *ManualFrames, *fakeClock) {
	t.Helper()
	frames := NewManualFrames()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s, err := Mount(lesson.TypeMotion, nil, Options{Frames: frames, Now: clock.Now})
	if err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	return s, frames, clock
}

func TestClockAdvanceClampsDelta(t *testing.T) {
	c := Clock{}
	got, done := c.Advance(0, 10, 5*time.Second)
	if done || math.Abs(got-0.08) > 1e-12 {
		t.Errorf("Advance = %v, %v; want 0.08, false", got, done)
	}
	got, done = c.Advance(9.99, 10, 50*time.Millisecond)
	if !done || got != 10 {
		t.Errorf("Advance near end = %v, %v; want 10, true", got, done)
	}
	if got, _ := c.Advance(1, 10, -time.Second); got != 1 {
		t.Errorf("negative elapsed moved time to %v", got)
	}
}

func TestPlaybackStopsExactlyAtEnd(t *testing.T) {
	s, frames, clock := newMotion(t)
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	steps := 0
	for s.Playing() && steps < 1000 {
		clock.now = clock.now.Add(time.Second)
		frames.Step(clock.now)
		steps++
	}
	if s.Playing() {
		t.Fatal("playback never ended")
	}
	if got := s.Value(); got != 2*math.Pi {
		t.Errorf("final t = %v, want exactly 2π", got)
	}
	if frames.Pending() != 0 {
		t.Errorf("%d frames still pending after playback ended", frames.Pending())
	}
	// 0.08 per clamped frame
	if steps != int(math.Ceil(2*math.Pi/0.08)) {
		t.Errorf("took %d frames", steps)
	}

	if err := s.Play(); err != nil {
		t.Fatal(err)
	}
	if s.Value() != 0 || !s.Playing() {
		t.Errorf("Play at the end should restart from 0, got t=%v playing=%v", s.Value(), s.Playing())
	}
}

func TestSeekKeepsPlayState(t *testing.T) {
	s, frames, clock := newMotion(t)
	_ = s.Play()
	if err := s.Seek(3); err != nil {
		t.Fatal(err)
	}
	if !s.Playing() || s.Value() != 3 {
		t.Errorf("after seek: playing=%v t=%v", s.Playing(), s.Value())
	}
	clock.now = clock.now.Add(50 * time.Millisecond)
	frames.Step(clock.now)
	if math.Abs(s.Value()-3.04) > 1e-9 {
		t.Errorf("t after one frame = %v, want 3.04", s.Value())
	}
	_ = s.Pause()
	if s.Playing() || frames.Pending() != 0 {
		t.Error("Pause should cancel the pending frame")
	}
	_ = s.Seek(100)
	if s.Value() != 2*math.Pi || s.Playing() {
		t.Errorf("seek past end: t=%v playing=%v", s.Value(), s.Playing())
	}
}

func TestTogglePlayback(t *testing.T) {
	s, _, _ := newMotion(t)
	_ = s.Toggle()
	if !s.Playing() {
		t.Error("Toggle should start playback")
	}
	_ = s.Toggle()
	if s.Playing() {
		t.Error("second Toggle should pause")
	}
}

func TestPlayRejectedForStaticLessons(t *testing.T) {
	s, err := Mount(lesson.TypeDerivative, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Play(); !errors.Is(err, ErrNotPlayable) {
		t.Errorf("Play on A = %v", err)
	}
}

func TestDragCommitsClampedValues(t *testing.T) {
	s, err := Mount(lesson.TypeDerivative, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	var seen []float64
	unsub, _ := s.Subscribe(func(ev Event) { seen = append(seen, ev.Value) })
	defer unsub()

	if err := s.PointerDown(render.Ratio(200, 400)); err != nil {
		t.Fatal(err)
	}
	if s.Value() != 33 {
		t.Errorf("value after pointer down = %v, want 33", s.Value())
	}
	_ = s.PointerMove(render.Ratio(900, 400))
	if s.Value() != 64 {
		t.Errorf("value past the track = %v, want 64", s.Value())
	}
	_ = s.PointerUp()
	_ = s.PointerMove(0)
	if s.Value() != 64 {
		t.Error("move after pointer up should be ignored")
	}
	if len(seen) != 4 || seen[0] != 33 || seen[1] != 64 {
		t.Errorf("events = %v", seen)
	}

	_ = s.SetValue(math.NaN())
	if s.Value() != 2 {
		t.Errorf("NaN should clamp to min, got %v", s.Value())
	}
	snap := s.Snapshot()
	if snap.Readouts[3].Key != "trueSlope" || snap.Readouts[3].Text != "2.0000" {
		t.Errorf("readouts = %+v", snap.Readouts)
	}
}

func TestGestureHandlersAreSymmetric(t *testing.T) {
	s, _ := Mount(lesson.TypeSplit, nil, Options{})
	_ = s.PointerDown(0.2)
	_ = s.PointerDown(0.3)
	if s.WindowHandlers() != 2 || s.Gesture() != Dragging {
		t.Errorf("handlers = %d gesture = %s", s.WindowHandlers(), s.Gesture())
	}
	_ = s.PointerUp()
	_ = s.PointerUp()
	if s.WindowHandlers() != 0 || s.Gesture() != Idle {
		t.Errorf("after up: handlers = %d gesture = %s", s.WindowHandlers(), s.Gesture())
	}

	_ = s.PointerDown(0.5)
	s.Dispose()
	if s.WindowHandlers() != 0 {
		t.Errorf("dispose left %d handlers attached", s.WindowHandlers())
	}
}

func TestCardsRevealOnNextFrame(t *testing.T) {
	frames := NewManualFrames()
	s, err := Mount(lesson.TypeBifurcation, nil, Options{Frames: frames})
	if err != nil {
		t.Fatal(err)
	}
	cards := s.Snapshot().Reflection.Cards
	if len(cards) != 1 || cards[0].Visible {
		t.Fatalf("cards at mount = %+v", cards)
	}
	var frameEvents int
	unsub, _ := s.Subscribe(func(ev Event) {
		if ev.Kind == EventFrame {
			frameEvents++
		}
	})
	defer unsub()
	frames.Step(time.Now())
	cards = s.Snapshot().Reflection.Cards
	if !cards[0].Visible {
		t.Error("card should be visible after one frame")
	}
	if frameEvents != 1 {
		t.Errorf("frame events = %d", frameEvents)
	}

	_ = s.SetValue(-2)
	_ = s.SetValue(5)
	frames.Step(time.Now())
	cards = s.Snapshot().Reflection.Cards
	if len(cards) != 1 || cards[0].ID != "single-well" {
		t.Errorf("double-well should not fire twice: %+v", cards)
	}
}

func TestUnknownTypeRendersErrorFrame(t *testing.T) {
	s, err := Mount("Z", nil, Options{})
	if err == nil {
		t.Fatal("expected error")
	}
	if s == nil || s.Failed() != "Unknown interaction type: Z" {
		t.Fatalf("session = %+v", s)
	}
	rec := render.NewRecorder(300, 200)
	s.Render(rec)
	if texts := rec.Texts(); len(texts) != 1 || texts[0] != "Unknown interaction type: Z" {
		t.Errorf("error frame texts = %v", texts)
	}
	if err := s.SetValue(1); !errors.Is(err, ErrFailed) {
		t.Errorf("SetValue on failed session = %v", err)
	}
	if snap := s.Snapshot(); snap.Error == "" {
		t.Error("snapshot should carry the error")
	}
}

func TestDisposeCancelsFrames(t *testing.T) {
	frames := NewManualFrames()
	s, _ := Mount(lesson.TypeBifurcation, nil, Options{Frames: frames})
	if frames.Pending() != 1 {
		t.Fatalf("pending = %d, want the card reveal frame", frames.Pending())
	}
	var got []EventKind
	_, _ = s.Subscribe(func(ev Event) { got = append(got, ev.Kind) })
	s.Dispose()
	s.Dispose()
	if frames.Pending() != 0 {
		t.Error("dispose should cancel the pending frame")
	}
	if len(got) != 1 || got[0] != EventDispose {
		t.Errorf("events = %v", got)
	}
	if err := s.SetValue(1); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetValue after dispose = %v", err)
	}
	if _, err := s.Subscribe(func(Event) {}); !errors.Is(err, ErrDisposed) {
		t.Errorf("Subscribe after dispose = %v", err)
	}
}

func TestResizeAndPNG(t *testing.T) {
	s, _ := Mount(lesson.TypeSplit, nil, Options{Width: 100, Height: 80})
	if err := s.Resize(200, 120, 2); err != nil {
		t.Fatal(err)
	}
	b, err := s.PNG()
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("not a png: %v", err)
	}
	if sz := img.Bounds().Size(); sz.X != 400 || sz.Y != 240 {
		t.Errorf("png size = %v, want 400x240", sz)
	}
	if err := s.Resize(0, 10, 1); err == nil {
		t.Error("zero width should be rejected")
	}
}

func TestManager(t *testing.T) {
	m := NewManager(2, Options{})
	a, err := m.Create(lesson.TypeDerivative, nil, 400, 300, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("Q", nil, 400, 300, 1); err == nil {
		t.Error("unknown type should report its error")
	}
	if _, err := m.Create(lesson.TypeSplit, nil, 400, 300, 1); !errors.Is(err, ErrLimit) {
		t.Errorf("third session = %v, want ErrLimit", err)
	}
	if got, _ := m.Get(a.ID()); got != a {
		t.Error("Get returned a different session")
	}
	if len(m.List()) != 2 {
		t.Errorf("List = %d sessions", len(m.List()))
	}
	if err := m.Delete(a.ID()); err != nil {
		t.Fatal(err)
	}
	if !a.Disposed() {
		t.Error("Delete should dispose")
	}
	if _, err := m.Get(a.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	m.Close()
	if m.Len() != 0 {
		t.Errorf("Len after Close = %d", m.Len())
	}
}

func TestManagerSessionsOwnTheirCaches(t *testing.T) {
	m := NewManager(0, Options{})
	defer m.Close()

	var first *Session
	for k := 0; k < 50; k++ {
		cfg := lesson.DefaultDerivative()
		cfg.System.Function = fmt.Sprintf("x*x + %d", k)
		s, err := m.Create(lesson.TypeDerivative, cfg, 0, 0, 0)
		if err != nil {
			t.Fatalf("create %d: %v", k, err)
		}
		if first == nil {
			first = s
			continue
		}
		if s.opts.Cache == first.opts.Cache {
			t.Fatal("sessions share an expression cache")
		}
		if got, want := s.opts.Cache.Len(), first.opts.Cache.Len(); got != want {
			t.Errorf("session %d cache holds %d programs, first holds %d", k, got, want)
		}
	}
	if m.base.Cache != nil {
		t.Error("manager should not keep a process-wide cache")
	}
	for _, snap := range m.List() {
		if err := m.Delete(snap.ID); err != nil {
			t.Fatal(err)
		}
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after deleting all", m.Len())
	}
}

func TestManagerRejectsOversizedTimeDomain(t *testing.T) {
	m := NewManager(0, Options{})
	defer m.Close()
	cfg := lesson.DefaultMotion()
	cfg.Parameter.Time = &lesson.TimeSpec{Start: 0, End: 1e6, Step: 1e-6}

	done := make(chan error, 1)
	go func() {
		_, err := m.Create(lesson.TypeMotion, cfg, 0, 0, 0)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, lesson.ErrInvalidTimeRange) {
			t.Errorf("err = %v, want ErrInvalidTimeRange", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("mounting an oversized time domain did not return")
	}
	if m.Len() != 1 {
		t.Errorf("failed mount should be kept, Len = %d", m.Len())
	}
}

func TestConcurrentTogglesAlternate(t *testing.T) {
	s, _, _ := newMotion(t)
	const n = 200
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				if err := s.Toggle(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if s.Playing() {
		t.Error("an even number of toggles should leave playback paused")
	}
}
