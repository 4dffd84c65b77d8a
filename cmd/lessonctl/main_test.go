package main

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/config"
	"github.com/MJE43/lessonviz/internal/lesson"
)

func testEnv() (*env, *bytes.Buffer) {
	var out bytes.Buffer
	return &env{cfg: config.Default(), log: zap.NewNop(), out: &out}, &out
}

func TestResolveLesson(t *testing.T) {
	tag, cfg, err := resolveLesson("product-rule")
	if err != nil || tag != lesson.TypeSplit || cfg.Slug != "product-rule" {
		t.Errorf("slug: %s %v %v", tag, cfg, err)
	}
	tag, cfg, err = resolveLesson("c")
	if err != nil || tag != lesson.TypeMotion || cfg != nil {
		t.Errorf("type: %s %v %v", tag, cfg, err)
	}
	if _, _, err := resolveLesson("nope"); err == nil {
		t.Error("unknown ref should fail")
	}
	if _, _, err := resolveLesson(""); err == nil {
		t.Error("empty ref should fail")
	}

	path := filepath.Join(t.TempDir(), "spiral.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := lesson.Encode(f, lesson.MotionSpiral()); err != nil {
		t.Fatal(err)
	}
	f.Close()
	tag, cfg, err = resolveLesson(path)
	if err != nil || tag != lesson.TypeMotion || cfg.Slug != "outward-spiral" {
		t.Errorf("file: %s %v %v", tag, cfg, err)
	}
}

func TestCheckShippedLessons(t *testing.T) {
	e, out := testEnv()
	if err := runCheck(e, nil); err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, slug := range lesson.ShippedSlugs() {
		if !strings.Contains(out.String(), "ok    "+slug) {
			t.Errorf("no ok line for %s:\n%s", slug, out)
		}
	}
}

func TestCheckRejectsUnknownType(t *testing.T) {
	e, _ := testEnv()
	err := runCheck(e, []string{"-lesson", "Q"})
	if !errors.Is(err, lesson.ErrUnknownType) {
		t.Errorf("err = %v", err)
	}
}

func TestRenderWritesPNG(t *testing.T) {
	e, out := testEnv()
	file := filepath.Join(t.TempDir(), "frame.png")
	err := runRender(e, []string{"-lesson", "potential-wells", "-value", "-2", "-w", "300", "-h", "200", "-dpr", "2", "-o", file})
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if sz := img.Bounds().Size(); sz.X != 600 || sz.Y != 400 {
		t.Errorf("size = %v", sz)
	}
	if !strings.Contains(out.String(), "B p=-2") {
		t.Errorf("summary = %q", out)
	}
}

func TestImportAndList(t *testing.T) {
	e, out := testEnv()
	dir := t.TempDir()
	lessonPath := filepath.Join(dir, "sine.json")
	f, err := os.Create(lessonPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg := lesson.DerivativeSine()
	cfg.Slug = "my-sine"
	if err := lesson.Encode(f, cfg); err != nil {
		t.Fatal(err)
	}
	f.Close()

	db := filepath.Join(dir, "lessons.db")
	if err := runImport(e, []string{"-db", db, lessonPath}); err != nil {
		t.Fatal(err)
	}
	// importing again updates in place
	if err := runImport(e, []string{"-db", db, lessonPath}); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := runList(e, []string{"-db", db}); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 1 || !strings.Contains(out.String(), "my-sine") {
		t.Errorf("list = %q", out)
	}

	out.Reset()
	if err := runList(e, nil); err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != len(lesson.Shipped()) {
		t.Errorf("shipped list has %d lines", lines)
	}
}

func TestPlot(t *testing.T) {
	e, out := testEnv()
	if err := runPlot(e, []string{"-lesson", "secant-sine", "-points", "16", "-target-op", "<", "-target", "0.01"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "secant-sine error vs value") || !strings.Contains(out.String(), "hits") {
		t.Errorf("plot = %s", out)
	}
}
