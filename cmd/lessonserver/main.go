// Command lessonserver serves lesson sessions over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/lessonviz/internal/api"
	"github.com/MJE43/lessonviz/internal/config"
	"github.com/MJE43/lessonviz/internal/logging"
	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/store"
)

// Set with -ldflags "-X main.version=..."
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	api.Version, api.GitCommit, api.BuildTime = version, gitCommit, buildTime
	if *showVersion {
		fmt.Printf("lessonserver %s (%s, %s)\n", version, gitCommit, buildTime)
		return
	}

	log, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	added, err := store.Seed(ctx, db)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	log.Info("database ready", zap.String("path", cfg.DBPath), zap.Int("seeded", added))

	frames := session.NewTickerFrames(cfg.FPS)
	sessions := session.NewManager(cfg.SessionLimit, session.Options{
		Frames: frames,
		Clock:  session.Clock{Rate: cfg.PlaybackRate},
		Logger: log,
	})
	defer sessions.Close()

	srv := api.NewServer(db, sessions, api.Options{
		Logger:       log,
		Timeout:      cfg.RequestTimeout,
		SweepWorkers: cfg.SweepWorkers,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	log.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("version", version), zap.Int("fps", cfg.FPS))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := frames.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", zap.Int("sessions", sessions.Len()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
