// Package watch implements the drop-zone watcher: new files appearing in
// the imports directory are handed to the pipeline once writes settle.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/keystone-estates/ingest-cli/internal/config"
)

// Handler receives one settled file path.
type Handler func(ctx context.Context, path string) error

// Watcher watches the imports drop zone for new documents.
type Watcher struct {
	dir        string
	extensions map[string]bool
	settle     time.Duration
	handler    Handler

	fw *fsnotify.Watcher

	// pending tracks files awaiting their settle timer so rapid write
	// bursts collapse into one ingestion.
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher from config.
func New(cfg config.WatchConfig, handler Handler) (*Watcher, error) {
	if cfg.ImportsDir == "" {
		return nil, eris.New("watch: imports_dir not configured")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "watch: create watcher")
	}
	if err := fw.Add(cfg.ImportsDir); err != nil {
		fw.Close()
		return nil, eris.Wrapf(err, "watch: add %s", cfg.ImportsDir)
	}

	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}
	settle := time.Duration(cfg.SettleMills) * time.Millisecond
	if settle <= 0 {
		settle = 2 * time.Second
	}

	return &Watcher{
		dir:        cfg.ImportsDir,
		extensions: exts,
		settle:     settle,
		handler:    handler,
		fw:         fw,
		pending:    make(map[string]*time.Timer),
	}, nil
}

// Run blocks processing events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("dir", w.dir))
	log.Info("watch: drop zone active")
	defer w.fw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			log.Error("watch: watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the settle timer for a file. The handler fires only
// after the file has been quiet for the settle window.
func (w *Watcher) schedule(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.Contains(path, "_ignored") {
		return
	}
	if !w.extensions[strings.ToLower(filepath.Ext(name))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		zap.L().Info("watch: new file settled", zap.String("file", name))
		if err := w.handler(ctx, path); err != nil {
			zap.L().Error("watch: handler failed", zap.String("file", name), zap.Error(err))
		}
	})
}
