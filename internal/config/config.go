// Package config reads the binaries' settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds server and CLI settings.
type Config struct {
	Addr           string
	DBPath         string
	LogLevel       string
	Dev            bool
	FPS            int
	PlaybackRate   float64
	SessionLimit   int
	RequestTimeout time.Duration
	SweepWorkers   int
}

// Default returns the settings used when nothing is set.
func Default() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "lessonviz.db",
		LogLevel:       "info",
		FPS:            60,
		PlaybackRate:   0.8,
		SessionLimit:   256,
		RequestTimeout: 60 * time.Second,
	}
}

// Load overlays LESSONVIZ_* variables on Default.
func Load() Config {
	d := Default()
	return Config{
		Addr:           envString("LESSONVIZ_ADDR", d.Addr),
		DBPath:         envString("LESSONVIZ_DB", d.DBPath),
		LogLevel:       envString("LESSONVIZ_LOG_LEVEL", d.LogLevel),
		Dev:            envBool("LESSONVIZ_DEV", d.Dev),
		FPS:            envInt("LESSONVIZ_FPS", d.FPS),
		PlaybackRate:   envFloat("LESSONVIZ_PLAYBACK_RATE", d.PlaybackRate),
		SessionLimit:   envInt("LESSONVIZ_SESSION_LIMIT", d.SessionLimit),
		RequestTimeout: envDuration("LESSONVIZ_REQUEST_TIMEOUT", d.RequestTimeout),
		SweepWorkers:   envInt("LESSONVIZ_SWEEP_WORKERS", d.SweepWorkers),
	}
}

func envString(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}

func envInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if s := os.Getenv(k); s != "" {
		var v float64
		if _, err := fmt.Sscanf(s, "%g", &v); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if s := os.Getenv(k); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}
