// Package swarm locates and drives Gaea.Swarm, the command-line renderer
// that builds a project file into terrain outputs.
//
// The renderer is an external collaborator: it is handed a saved project
// path plus build parameters and its log is relayed line by line. Nothing in
// this package reads or writes project files.
//
//	exe, err := swarm.Detect(cfg.SwarmPath)
//	res, err := swarm.Build(ctx, exe, swarm.Options{File: path, Seed: &seed}, swarm.RunOptions{Logger: logger})
package swarm

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yushimatenjin/gaea-mcp/pkg/config"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// ExecutableName is the renderer binary name without extension.
const ExecutableName = "Gaea.Swarm"

// DefaultLocations returns the install paths probed by [Detect] on this
// platform, most recent release first.
func DefaultLocations() []string {
	if runtime.GOOS != "windows" {
		return nil
	}
	var out []string
	exe := ExecutableName + ".exe"
	for _, base := range []string{os.Getenv("ProgramFiles"), `C:\Program Files`} {
		if base == "" {
			continue
		}
		out = append(out,
			filepath.Join(base, "QuadSpinner", "Gaea 2", exe),
			filepath.Join(base, "QuadSpinner", "Gaea", exe),
		)
	}
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		out = append(out, filepath.Join(local, "Programs", "Gaea 2", exe))
	}
	return out
}

// Detect returns the renderer executable. It tries, in order: the
// configured path, $GAEA_SWARM_PATH, [DefaultLocations] and the PATH. A
// configured or environment path that does not exist is an error rather
// than a reason to keep searching.
func Detect(configured string) (string, error) {
	return detect(configured, os.LookupEnv, DefaultLocations(), exec.LookPath)
}

func detect(configured string, lookupEnv func(string) (string, bool), candidates []string, lookPath func(string) (string, error)) (string, error) {
	if configured != "" {
		return requireFile(configured, "configured swarm_path")
	}
	if v, ok := lookupEnv(config.EnvSwarmPath); ok && v != "" {
		return requireFile(v, config.EnvSwarmPath)
	}
	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}
	if lookPath != nil {
		if p, err := lookPath(ExecutableName); err == nil {
			return p, nil
		}
	}
	tried := "PATH"
	if len(candidates) > 0 {
		tried = strings.Join(candidates, ", ") + ", PATH"
	}
	return "", gerrors.New(gerrors.ErrCodeNotFound,
		"%s not found (tried %s); set swarm_path in the config or %s", ExecutableName, tried, config.EnvSwarmPath)
}

func requireFile(path, source string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", gerrors.New(gerrors.ErrCodeNotFound, "%s %q does not exist", source, path)
		}
		return "", gerrors.Wrap(gerrors.ErrCodeIO, err, "stat %s", path)
	}
	if info.IsDir() {
		return "", gerrors.New(gerrors.ErrCodeInvalidPath, "%s %q is a directory", source, path)
	}
	return path, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
