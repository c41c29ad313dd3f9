package dict

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/subfine/subfine/utils"
	"go.uber.org/zap"
)

// Watcher keeps a fresh Table for a dictionary file that gets edited while
// the process runs. Readers share immutable snapshots through Current; a
// reload swaps in a new snapshot and never touches a table already handed
// out.
type Watcher struct {
	log *zap.Logger

	path         string
	parseOptions []ParseOption

	table atomic.Pointer[Table]
}

// NewWatcher loads path once, failing if the initial load does, and
// prepares a watcher for later edits. Reloads only happen while Run is
// running.
func NewWatcher(path string, parentLogger *zap.Logger, options ...ParseOption) (*Watcher, error) {
	w := &Watcher{
		log:          parentLogger.Named("dict_watcher"),
		path:         path,
		parseOptions: options,
	}

	table, err := Load(path, options...)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	w.table.Store(table)

	return w, nil
}

// Current returns the latest good snapshot.
func (w *Watcher) Current() *Table {
	return w.table.Load()
}

// Run reloads the dictionary whenever the file is written until ctx is
// done. A reload that fails keeps the previous snapshot.
func (w *Watcher) Run(ctx context.Context) error {
	defer utils.PanicRecovery(w.log)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory instead of the file: editors replace files on
	// save, which silently drops a watch held on the file itself.
	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w.log.With(zap.String("path", w.path)).Info("watching dictionary")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("dictionary watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	table, err := Load(w.path, w.parseOptions...)
	if err != nil {
		w.log.Warn("dictionary reload failed, keeping previous table", zap.Error(err))
		return
	}

	w.table.Store(table)
	w.log.With(zap.Int("rules", table.Len())).Info("dictionary reloaded")
}
