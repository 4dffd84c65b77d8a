package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/store"
)

// mockDB is an in-memory store.DB
type mockDB struct {
	mu      sync.Mutex
	lessons map[string]*store.Lesson
	reports []store.SweepReport
}

func newMockDB() *mockDB { return &mockDB{lessons: make(map[string]*store.Lesson)} }

func (m *mockDB) Close() error                      { return nil }
func (m *mockDB) Migrate(ctx context.Context) error { return nil }

func (m *mockDB) SaveLesson(ctx context.Context, l *store.Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.Config == nil {
		return store.ErrNoConfig
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Slug == "" {
		l.Slug = l.Config.Slug
	}
	for id, other := range m.lessons {
		if other.Slug == l.Slug && id != l.ID {
			return store.ErrDuplicateSlug
		}
	}
	l.Type = l.Config.InteractionType
	cp := *l
	m.lessons[l.ID] = &cp
	return nil
}

func (m *mockDB) GetLesson(ctx context.Context, id string) (*store.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lessons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockDB) GetLessonBySlug(ctx context.Context, slug string) (*store.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lessons {
		if l.Slug == slug {
			cp := *l
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockDB) ListLessons(ctx context.Context, q store.LessonsQuery) ([]store.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Lesson{}
	for _, l := range m.lessons {
		if q.Type == "" || l.Type == q.Type {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *mockDB) DeleteLesson(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lessons[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.lessons, id)
	return nil
}

func (m *mockDB) SaveSweepReport(ctx context.Context, r *store.SweepReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Metric = r.Report.Metric
	r.CreatedAt = time.Now()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *mockDB) ListSweepReports(ctx context.Context, lessonID string, limit int) ([]store.SweepReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.SweepReport{}
	for _, r := range m.reports {
		if r.LessonID == lessonID {
			out = append(out, r)
		}
	}
	return out, nil
}

type testServer struct {
	handler http.Handler
	db      *mockDB
	frames  *session.ManualFrames
}

func newTestServer(limit int) *testServer {
	frames := session.NewManualFrames()
	db := newMockDB()
	mgr := session.NewManager(limit, session.Options{Frames: frames})
	srv := NewServer(db, mgr, Options{})
	return &testServer{handler: srv.Routes(), db: db, frames: frames}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestHealthVersionAndTypes(t *testing.T) {
	ts := newTestServer(0)

	w := ts.do(t, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	health := decode[HealthCheckResponse](t, w)
	if health.Status != HealthStatusHealthy {
		t.Errorf("health status = %s, checks %+v", health.Status, health.Checks)
	}

	w = ts.do(t, "GET", "/version", nil)
	if v := decode[VersionInfo](t, w); v.Version != Version {
		t.Errorf("version = %+v", v)
	}

	w = ts.do(t, "GET", "/interaction-types", nil)
	specs := decode[[]interactions.Spec](t, w)
	var tags []lesson.Type
	for _, s := range specs {
		tags = append(tags, s.Type)
	}
	if len(tags) != 4 || tags[0] != "A" || tags[1] != "B" || tags[2] != "C" || tags[3] != "E" {
		t.Errorf("types = %v", tags)
	}

	if w := ts.do(t, "GET", "/ping", nil); w.Code != http.StatusOK {
		t.Errorf("heartbeat = %d", w.Code)
	}
}

func TestUnknownTypeMountsErrorSession(t *testing.T) {
	ts := newTestServer(0)
	w := ts.do(t, "POST", "/sessions", CreateSessionRequest{Type: "Z", Width: 320, Height: 200})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body)
	}
	snap := decode[session.Snapshot](t, w)
	if snap.Error != "Unknown interaction type: Z" {
		t.Errorf("error = %q", snap.Error)
	}

	w = ts.do(t, "GET", "/sessions/"+snap.ID+"/frame.png", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("frame = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	if sz := img.Bounds().Size(); sz.X != 320 || sz.Y != 200 {
		t.Errorf("frame size = %v", sz)
	}

	w = ts.do(t, "POST", "/sessions/"+snap.ID+"/input", InputRequest{Action: ActionPlay})
	if w.Code != http.StatusConflict {
		t.Errorf("input on failed session = %d", w.Code)
	}
}

func TestSessionInputLifecycle(t *testing.T) {
	ts := newTestServer(0)
	snap := decode[session.Snapshot](t, ts.do(t, "POST", "/sessions", CreateSessionRequest{Type: lesson.TypeDerivative}))
	base := "/sessions/" + snap.ID

	half := 0.5
	w := ts.do(t, "POST", base+"/input", InputRequest{Action: ActionPointerDown, Ratio: &half})
	if w.Code != http.StatusOK {
		t.Fatalf("pointerdown = %d: %s", w.Code, w.Body)
	}
	got := decode[session.Snapshot](t, w)
	if got.Value != 33 || got.Gesture != session.Dragging {
		t.Errorf("after pointerdown: value=%v gesture=%s", got.Value, got.Gesture)
	}
	got = decode[session.Snapshot](t, ts.do(t, "POST", base+"/input", InputRequest{Action: ActionPointerUp}))
	if got.Gesture != session.Idle {
		t.Errorf("gesture after up = %s", got.Gesture)
	}

	if w := ts.do(t, "POST", base+"/input", InputRequest{Action: "jump"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown action = %d", w.Code)
	}
	if w := ts.do(t, "POST", base+"/input", InputRequest{Action: ActionSet}); w.Code != http.StatusBadRequest {
		t.Errorf("set without value = %d", w.Code)
	}
	if w := ts.do(t, "POST", base+"/input", InputRequest{Action: ActionPlay}); w.Code != http.StatusConflict {
		t.Errorf("play on A = %d", w.Code)
	}

	if w := ts.do(t, "DELETE", base, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := ts.do(t, "GET", base, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestMotionPlaybackOverHTTP(t *testing.T) {
	ts := newTestServer(0)
	snap := decode[session.Snapshot](t, ts.do(t, "POST", "/sessions", CreateSessionRequest{Type: lesson.TypeMotion}))
	base := "/sessions/" + snap.ID

	got := decode[session.Snapshot](t, ts.do(t, "POST", base+"/input", InputRequest{Action: ActionPlay}))
	if !got.Playing {
		t.Fatal("play did not start playback")
	}
	ts.frames.Step(time.Now().Add(50 * time.Millisecond))
	got = decode[session.Snapshot](t, ts.do(t, "GET", base, nil))
	if got.Value <= 0 {
		t.Errorf("t did not advance: %v", got.Value)
	}
	seek := 100.0
	got = decode[session.Snapshot](t, ts.do(t, "POST", base+"/input", InputRequest{Action: ActionSeek, Value: &seek}))
	if got.Value != got.Max {
		t.Errorf("seek should clamp to %v, got %v", got.Max, got.Value)
	}
}

func TestSessionLimit(t *testing.T) {
	ts := newTestServer(1)
	if w := ts.do(t, "POST", "/sessions", CreateSessionRequest{Type: lesson.TypeSplit}); w.Code != http.StatusCreated {
		t.Fatalf("first = %d", w.Code)
	}
	w := ts.do(t, "POST", "/sessions", CreateSessionRequest{Type: lesson.TypeSplit})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second = %d", w.Code)
	}
	if e := decode[EngineError](t, w); e.Type != ErrTypeSessionLimit || e.RequestID == "" {
		t.Errorf("error body = %+v", e)
	}
	if w := ts.do(t, "POST", "/sessions", CreateSessionRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty create = %d", w.Code)
	}
}

func TestLessonCatalogAndSweep(t *testing.T) {
	ts := newTestServer(0)

	w := ts.do(t, "POST", "/lessons", lesson.SplitProductRule())
	if w.Code != http.StatusCreated {
		t.Fatalf("create lesson = %d: %s", w.Code, w.Body)
	}
	saved := decode[store.Lesson](t, w)
	if saved.Slug != "product-rule" || saved.Type != lesson.TypeSplit {
		t.Fatalf("saved = %+v", saved)
	}
	if w := ts.do(t, "POST", "/lessons", lesson.SplitProductRule()); w.Code != http.StatusConflict {
		t.Errorf("duplicate slug = %d", w.Code)
	}

	bad := lesson.DefaultDerivative()
	bad.System.Function = "x +* 2"
	w = ts.do(t, "POST", "/lessons", bad)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad expression = %d", w.Code)
	}
	if e := decode[EngineError](t, w); e.Type != ErrTypeInvalidLesson || e.Context["field"] != "systemSpec.function" {
		t.Errorf("bad expression error = %+v", e)
	}
	if w := ts.do(t, "POST", "/lessons", []byte(`{"interactionType":"Z"}`)); w.Code != http.StatusBadRequest {
		t.Errorf("unknown type lesson = %d", w.Code)
	}
	if w := ts.do(t, "POST", "/lessons", []byte(`{`)); w.Code != http.StatusBadRequest {
		t.Errorf("broken json = %d", w.Code)
	}

	w = ts.do(t, "POST", "/lessons/"+saved.ID+"/sweep", SweepRequest{})
	if w.Code != http.StatusCreated {
		t.Fatalf("sweep = %d: %s", w.Code, w.Body)
	}
	rep := decode[store.SweepReport](t, w)
	if rep.Report.Summary.Failures != 0 || len(rep.Report.Points) != 7 {
		t.Errorf("sweep summary = %+v", rep.Report.Summary)
	}
	if w := ts.do(t, "POST", "/lessons/"+saved.ID+"/sweep", SweepRequest{Metric: "nope"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown metric = %d", w.Code)
	}
	list := decode[map[string][]store.SweepReport](t, ts.do(t, "GET", "/lessons/"+saved.ID+"/sweeps", nil))
	if len(list["reports"]) != 1 {
		t.Errorf("reports = %d", len(list["reports"]))
	}

	w = ts.do(t, "POST", "/sessions", CreateSessionRequest{Slug: "product-rule"})
	if snap := decode[session.Snapshot](t, w); snap.Slug != "product-rule" || snap.Error != "" {
		t.Errorf("session from slug = %+v", snap)
	}
	if w := ts.do(t, "POST", "/sessions", CreateSessionRequest{LessonID: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("missing lesson = %d", w.Code)
	}

	if w := ts.do(t, "DELETE", "/lessons/"+saved.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete lesson = %d", w.Code)
	}
	if w := ts.do(t, "GET", "/lessons/"+saved.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted lesson = %d", w.Code)
	}
}

func TestInlineConfigSession(t *testing.T) {
	ts := newTestServer(0)
	raw, _ := json.Marshal(lesson.MotionSpiral())
	w := ts.do(t, "POST", "/sessions", CreateSessionRequest{Config: raw})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	snap := decode[session.Snapshot](t, w)
	if snap.Type != lesson.TypeMotion || snap.Error != "" {
		t.Errorf("inline session = %+v", snap)
	}
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestFrameWriteErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mgr := session.NewManager(0, session.Options{Frames: session.NewManualFrames()})
	srv := NewServer(newMockDB(), mgr, Options{Logger: zap.New(core)})
	sess, err := mgr.Create(lesson.TypeSplit, nil, 200, 100, 1)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/sessions/"+sess.ID()+"/frame.png", nil)
	srv.Routes().ServeHTTP(brokenWriter{httptest.NewRecorder()}, req)

	entries := logs.FilterMessage("write frame").All()
	if len(entries) != 1 {
		t.Fatalf("write frame logged %d times", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["session"] != sess.ID() {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestOversizedTimeDomainMountsErrorSession(t *testing.T) {
	ts := newTestServer(0)
	cfg := lesson.DefaultMotion()
	cfg.Parameter.Time = &lesson.TimeSpec{Start: 0, End: 1e6, Step: 1e-6}
	raw, _ := json.Marshal(cfg)

	w := ts.do(t, "POST", "/sessions", CreateSessionRequest{Config: raw})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body)
	}
	if snap := decode[session.Snapshot](t, w); snap.Error == "" {
		t.Error("oversized time domain should mount in the error state")
	}
	if w := ts.do(t, "POST", "/lessons", cfg); w.Code != http.StatusBadRequest {
		t.Errorf("saving the lesson = %d, want 400", w.Code)
	}
}
