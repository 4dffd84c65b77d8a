package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"LESSONVIZ_ADDR", "LESSONVIZ_DB", "LESSONVIZ_LOG_LEVEL", "LESSONVIZ_DEV", "LESSONVIZ_FPS",
		"LESSONVIZ_PLAYBACK_RATE", "LESSONVIZ_SESSION_LIMIT", "LESSONVIZ_REQUEST_TIMEOUT", "LESSONVIZ_SWEEP_WORKERS",
	} {
		t.Setenv(k, "")
	}
	if got := Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LESSONVIZ_ADDR", "127.0.0.1:9000")
	t.Setenv("LESSONVIZ_FPS", "30")
	t.Setenv("LESSONVIZ_DEV", "true")
	t.Setenv("LESSONVIZ_PLAYBACK_RATE", "1.5")
	t.Setenv("LESSONVIZ_SESSION_LIMIT", "not-a-number")
	t.Setenv("LESSONVIZ_REQUEST_TIMEOUT", "5s")

	c := Load()
	if c.Addr != "127.0.0.1:9000" || c.FPS != 30 || !c.Dev {
		t.Errorf("overrides not applied: %+v", c)
	}
	if c.PlaybackRate != 1.5 {
		t.Errorf("rate = %v", c.PlaybackRate)
	}
	if c.SessionLimit != Default().SessionLimit {
		t.Errorf("bad int should fall back, got %d", c.SessionLimit)
	}
	if c.RequestTimeout != 5*time.Second {
		t.Errorf("timeout = %v", c.RequestTimeout)
	}
}
