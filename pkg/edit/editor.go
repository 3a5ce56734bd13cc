// Package edit runs read-modify-write cycles against project files.
//
// The document core is single-threaded and keeps nothing between calls: an
// edit reads the whole file, mutates it in memory and writes it back. Two
// such edits racing on one file would silently lose one of them, so an
// [Editor] serializes all work on a path through a [Locker] keyed by the
// absolute path. [MemoryLocker] covers one process; [RedisLocker] covers
// several server processes sharing a file system.
//
//	ed := edit.New(edit.NewMemoryLocker(), logger)
//	err := ed.Edit(ctx, "scene.terrain", func(d *terrain.Document) error {
//	    _, err := d.AddNode(t.FullName, t.PortSpecs(), terrain.NodeOptions{})
//	    return err
//	})
package edit

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/observability"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

// Editor serializes edits per project file.
type Editor struct {
	locker Locker
	logger *log.Logger
	now    func() time.Time
	wait   time.Duration
}

// New returns an Editor. A nil locker means a fresh [MemoryLocker]; a nil
// logger discards output.
func New(locker Locker, logger *log.Logger) *Editor {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Editor{locker: locker, logger: logger, now: time.Now}
}

// WithLockWait bounds how long an edit waits for the file lock before it
// fails with LOCKED. Zero waits as long as the caller's context allows.
func (e *Editor) WithLockWait(d time.Duration) *Editor {
	e.wait = d
	return e
}

// Resolve validates path and returns its cleaned absolute form, which is
// also the lock key.
func Resolve(path string) (string, error) {
	if err := gerrors.ValidateProjectPath(path); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", gerrors.Wrap(gerrors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	return filepath.Clean(abs), nil
}

// Edit loads the file at path, calls fn and writes the result back. The
// file is left untouched when fn fails.
func (e *Editor) Edit(ctx context.Context, path string, fn func(*terrain.Document) error) error {
	return e.run(ctx, "edit", path, func(abs string) error {
		d, err := terrain.ReadFile(abs)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		return terrain.WriteFile(abs, d, e.now())
	})
}

// View loads the file at path and calls fn without writing anything back.
func (e *Editor) View(ctx context.Context, path string, fn func(*terrain.Document) error) error {
	return e.run(ctx, "view", path, func(abs string) error {
		d, err := terrain.ReadFile(abs)
		if err != nil {
			return err
		}
		return fn(d)
	})
}

// Create writes a new empty project to path. An empty name defaults to the
// file name without its extension. An existing file is replaced only when
// overwrite is set; otherwise Create fails with FILE_EXISTS.
func (e *Editor) Create(ctx context.Context, path, name string, overwrite bool) (*terrain.Document, error) {
	var doc *terrain.Document
	err := e.run(ctx, "create", path, func(abs string) error {
		if _, err := os.Stat(abs); err == nil {
			if !overwrite {
				return gerrors.New(gerrors.ErrCodeFileExists, "%s already exists", abs)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return gerrors.Wrap(gerrors.ErrCodeIO, err, "stat %s", abs)
		}
		now := e.now()
		d := terrain.CreateEmpty(now)
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
		}
		d.SetProjectName(name)
		if err := terrain.WriteFile(abs, d, now); err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

func (e *Editor) run(ctx context.Context, op, path string, fn func(abs string) error) error {
	abs, err := Resolve(path)
	if err != nil {
		return err
	}

	start := time.Now()
	hooks := observability.Edits()
	hooks.OnEditStart(ctx, op, abs)

	lockCtx := ctx
	if e.wait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.wait)
		defer cancel()
	}
	unlock, err := e.locker.Lock(lockCtx, abs)
	if err != nil {
		hooks.OnEditComplete(ctx, op, abs, time.Since(start), err)
		return err
	}
	defer unlock()

	err = fn(abs)
	elapsed := time.Since(start)
	hooks.OnEditComplete(ctx, op, abs, elapsed, err)
	if err != nil {
		e.logger.Debug("edit failed", "op", op, "path", abs, "err", err)
		return err
	}
	e.logger.Debug("edit done", "op", op, "path", abs, "elapsed", elapsed.Round(time.Millisecond))
	return nil
}
