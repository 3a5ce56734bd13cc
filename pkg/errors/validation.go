package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// ProjectExt is the file extension of Gaea project files.
const ProjectExt = ".terrain"

// ValidateProjectPath validates a project file path supplied by a caller.
//
// The validation rules are intentionally conservative:
//   - No empty paths
//   - No control characters or null bytes
//   - Maximum length of 1024 characters
//   - Must end in ".terrain" (case-insensitive)
func ValidateProjectPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "project path cannot be empty")
	}

	const maxPathLength = 1024
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if !strings.EqualFold(filepath.Ext(path), ProjectExt) {
		return New(ErrCodeInvalidPath, "project file must have a %s extension: %q", ProjectExt, path)
	}

	return nil
}

// ValidateNodeName validates a display name for a node.
func ValidateNodeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "node name cannot be empty")
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "node name too long (max 256 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node name contains invalid control characters")
		}
	}
	return nil
}

// ValidatePropertyKey validates a node property key. Any non-empty key is
// accepted except those starting with "$", which are reserved for reference
// and type information.
func ValidatePropertyKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidInput, "property key cannot be empty")
	}
	if strings.HasPrefix(key, "$") {
		return New(ErrCodeInvalidInput, "property key %q is reserved", key)
	}
	return nil
}

// variableNameRegex matches build variable names passed to the renderer.
var variableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateVariableName validates a build variable override name.
func ValidateVariableName(name string) error {
	if !variableNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid variable name: %q", name)
	}
	return nil
}
