package terrain

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// ReadFile opens path, loads it with [Load] and closes the file.
// A missing file is reported as FILE_NOT_FOUND, other read failures as
// IO_ERROR, and invalid content as FORMAT_ERROR.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, gerrors.Wrap(gerrors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, gerrors.Wrap(gerrors.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()

	d, err := Load(f)
	if err != nil {
		if gerrors.Is(err, gerrors.ErrCodeFormat) {
			return nil, err
		}
		return nil, gerrors.Wrap(gerrors.ErrCodeIO, err, "read %s", path)
	}
	return d, nil
}

// WriteFile serializes d with [Document.Write] and replaces path with the
// result. The text is written to a temporary file in the same directory,
// synced and closed, then renamed over path, so a failure at any point
// leaves the previous file intact. Failures are reported as IO_ERROR.
func WriteFile(path string, d *Document, now time.Time) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = d.Write(tmp, now); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "write %s", path)
	}
	if err = tmp.Sync(); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "sync %s", tmpName)
	}
	if err = tmp.Close(); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "close %s", tmpName)
	}
	if info, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpName, 0o644)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "replace %s", path)
	}
	return nil
}
