package swarm

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// DefaultDebounce is the quiet period Watch waits for after the last change.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls fn each time the file at path is saved, until ctx is done.
// Bursts of events within debounce are collapsed into one call. The parent
// directory is watched rather than the file itself because saves replace
// the file by renaming a temporary file over it.
//
// Errors from fn are logged and do not stop the watch. Watch returns nil
// when ctx is canceled.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *log.Logger, fn func(context.Context) error) error {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInvalidPath, err, "resolve %s", path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "create file watcher")
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "watch %s", filepath.Dir(target))
	}

	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !isSave(ev.Op) {
				continue
			}
			logger.Debug("change", "path", ev.Name, "op", ev.Op.String())
			fire = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "err", err)
		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				logger.Error("rebuild failed", "err", err)
			}
		}
	}
}

func isSave(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
