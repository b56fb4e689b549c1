// Package watch re-runs an analysis whenever a keyword file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ramonehamilton/competitor-discovery/internal/keywords"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
)

const defaultDebounce = 2 * time.Second

// Runner analyzes one keyword batch.
type Runner func(ctx context.Context, kws []string) error

// Config configures a Watcher.
type Config struct {
	KeywordFile string

	// Debounce is the quiet period after the last file event before the
	// file is re-read.
	Debounce time.Duration

	// Interval re-runs the current keywords periodically even when the file
	// is unchanged. Zero disables it.
	Interval time.Duration

	// RunOnStart analyzes the file once before waiting for changes.
	RunOnStart bool
}

// Watcher monitors a keyword file.
type Watcher struct {
	cfg  Config
	run  Runner
	last []string
}

// New creates a Watcher.
func New(cfg Config, run Runner) (*Watcher, error) {
	if cfg.KeywordFile == "" {
		return nil, errors.New("keyword file is required")
	}
	if run == nil {
		return nil, errors.New("runner is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	return &Watcher{cfg: cfg, run: run}, nil
}

// Watch blocks until ctx is done. The file's directory is watched rather than
// the file itself so editors that save by renaming are still seen. A batch is
// only re-analyzed when its validated keywords differ from the last run.
func (w *Watcher) Watch(ctx context.Context) (err error) {
	log := logger.FromContext(ctx).With(zap.String("file", w.cfg.KeywordFile))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	target, err := filepath.Abs(w.cfg.KeywordFile)
	if err != nil {
		return fmt.Errorf("resolve keyword file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch keyword file: %w", err)
	}

	if w.cfg.RunOnStart {
		w.reload(ctx, log, true)
	}

	debounce := time.NewTimer(w.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	var tick <-chan time.Time
	if w.cfg.Interval > 0 {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Info("Watching keyword file", zap.Duration("debounce", w.cfg.Debounce), zap.Duration("interval", w.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(w.cfg.Debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error", zap.Error(err))
		case <-debounce.C:
			w.reload(ctx, log, false)
		case <-tick:
			w.reload(ctx, log, true)
		}
	}
}

// reload reads the file and runs the batch when it changed or force is set.
// Errors are logged; the watcher keeps going.
func (w *Watcher) reload(ctx context.Context, log *zap.Logger, force bool) {
	raw, err := keywords.FromFile(w.cfg.KeywordFile)
	if err != nil {
		log.Warn("Failed to read keyword file", zap.Error(err))
		return
	}
	kws, err := keywords.Validate(ctx, raw)
	if err != nil {
		log.Warn("Keyword file has no usable keywords", zap.Error(err))
		return
	}

	if !force && slices.Equal(kws, w.last) {
		log.Debug("Keywords unchanged, skipping run")
		return
	}
	w.last = kws

	log.Info("Running analysis", zap.Int("keywords", len(kws)))
	if err := w.run(ctx, kws); err != nil {
		log.Error("Analysis failed", zap.Error(err))
	}
}
