package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/internal/config"
	"github.com/grantwell/grantwell/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the corpus store and rebuild the lexical index on change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if cfg.Store.SQLitePath == "" {
				return fmt.Errorf("watch requires a file-backed store (store.sqlite_path)")
			}

			engine, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			// SQLite in WAL mode writes land in sibling -wal/-shm files,
			// so watch the containing directory rather than the db file.
			dir := filepath.Dir(cfg.Store.SQLitePath)
			w, err := watcher.New([]string{dir}, debounce, engine.RebuildLexical)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("watching corpus store",
				slog.String("dir", dir),
				slog.Duration("debounce", debounce))
			fmt.Printf("Watching %s (Ctrl-C to stop)\n", dir)
			w.Start(ctx)
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce,
		"Settle window before rebuilding after a change burst")
	return cmd
}
