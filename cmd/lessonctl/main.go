// Command lessonctl renders, checks and plays lessons from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/config"
	"github.com/MJE43/lessonviz/internal/lesson"
	"github.com/MJE43/lessonviz/internal/logging"
	"github.com/MJE43/lessonviz/internal/store"
)

type command struct {
	usage string
	run   func(env *env, args []string) error
}

// env is shared by every subcommand.
type env struct {
	cfg config.Config
	log *zap.Logger
	out io.Writer
}

var commands = map[string]command{
	"list":   {"list [-db path]", runList},
	"render": {"render -lesson ref [-value v] [-w 640 -h 400 -dpr 1] -o out.png", runRender},
	"check":  {"check [-lesson ref]", runCheck},
	"plot":   {"plot -lesson ref [-metric name] [-points n]", runPlot},
	"play":   {"play -lesson ref", runPlay},
	"import": {"import [-db path] file.json...", runImport},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: lessonctl <command> [flags]")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", commands[n].usage)
	}
	fmt.Fprintln(w, "a lesson ref is a shipped slug, a lesson JSON file or a bare type (A, B, C, E)")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage(os.Stderr)
		os.Exit(2)
	}
	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cmd.run(&env{cfg: cfg, log: log, out: os.Stdout}, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "lessonctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// resolveLesson turns a ref into the tag and config to mount. A nil config
// means the type's built-in lesson.
func resolveLesson(ref string) (lesson.Type, *lesson.Config, error) {
	if ref == "" {
		return "", nil, fmt.Errorf("-lesson is required")
	}
	if strings.EqualFold(filepath.Ext(ref), ".json") {
		cfg, err := lesson.LoadFile(ref)
		if err != nil {
			return "", nil, err
		}
		return cfg.InteractionType, cfg, nil
	}
	if cfg, ok := lesson.Shipped()[ref]; ok {
		return cfg.InteractionType, cfg, nil
	}
	if len(ref) == 1 {
		return lesson.Type(strings.ToUpper(ref)), nil, nil
	}
	return "", nil, fmt.Errorf("unknown lesson %q", ref)
}

// openStore opens and migrates the lesson database.
func openStore(ctx context.Context, path string) (*store.SQLiteDB, error) {
	db, err := store.NewSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
