package swarm

import (
	"maps"
	"slices"
	"strconv"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// Options are the build parameters passed to the renderer.
type Options struct {
	// File is the project to build. Required.
	File string `json:"file"`
	// Profile selects a build profile stored in the project.
	Profile string `json:"profile,omitempty"`
	// Region restricts the build to a named region.
	Region string `json:"region,omitempty"`
	// Seed overrides the project seed when non-nil.
	Seed *int `json:"seed,omitempty"`
	// IgnoreCache forces every node to be recomputed.
	IgnoreCache bool `json:"ignore_cache,omitempty"`
	// Verbose asks the renderer for a detailed log.
	Verbose bool `json:"verbose,omitempty"`
	// Variables override automation variables by name.
	Variables map[string]string `json:"variables,omitempty"`
}

// BuildArgs returns the renderer command line for opts. Variable overrides
// are written last as "-v name=value ..." sorted by name: the renderer
// treats every argument after -v as a variable assignment.
func BuildArgs(opts Options) ([]string, error) {
	if opts.File == "" {
		return nil, gerrors.New(gerrors.ErrCodeInvalidInput, "build needs a project file")
	}
	args := []string{"--Filename", opts.File}
	if opts.Profile != "" {
		args = append(args, "--profile", opts.Profile)
	}
	if opts.Region != "" {
		args = append(args, "--region", opts.Region)
	}
	if opts.Seed != nil {
		args = append(args, "--seed", strconv.Itoa(*opts.Seed))
	}
	if opts.IgnoreCache {
		args = append(args, "--ignorecache")
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	if len(opts.Variables) > 0 {
		args = append(args, "-v")
		for _, name := range slices.Sorted(maps.Keys(opts.Variables)) {
			if err := gerrors.ValidateVariableName(name); err != nil {
				return nil, err
			}
			args = append(args, name+"="+opts.Variables[name])
		}
	}
	return args, nil
}
