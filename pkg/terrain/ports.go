package terrain

import (
	"strings"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// PortKind is the capability tag of a port as written in the file.
type PortKind string

const (
	PrimaryIn         PortKind = "PrimaryIn"
	PrimaryInRequired PortKind = "PrimaryIn, Required"
	PrimaryOut        PortKind = "PrimaryOut"
	SecondaryIn       PortKind = "In"
	SecondaryInReq    PortKind = "In, Required"
	SecondaryOut      PortKind = "Out"
)

var portKindAliases = map[string]PortKind{
	"primaryin":                PrimaryIn,
	"primary-input":            PrimaryIn,
	"primaryin,required":       PrimaryInRequired,
	"primary-input-required":   PrimaryInRequired,
	"primaryout":               PrimaryOut,
	"primary-output":           PrimaryOut,
	"in":                       SecondaryIn,
	"secondary-input":          SecondaryIn,
	"in,required":              SecondaryInReq,
	"secondary-input-required": SecondaryInReq,
	"out":                      SecondaryOut,
	"secondary-output":         SecondaryOut,
}

// ParsePortKind accepts either the file spelling ("PrimaryIn, Required") or
// a descriptive spelling ("primary-input-required").
func ParsePortKind(s string) (PortKind, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if k, ok := portKindAliases[key]; ok {
		return k, nil
	}
	return "", gerrors.New(gerrors.ErrCodeInvalidInput, "unknown port kind %q", s)
}

// Known reports whether k is one of the six capability tags.
func (k PortKind) Known() bool {
	switch k {
	case PrimaryIn, PrimaryInRequired, PrimaryOut, SecondaryIn, SecondaryInReq, SecondaryOut:
		return true
	}
	return false
}

// IsInput reports whether the port receives connections.
func (k PortKind) IsInput() bool {
	switch k {
	case PrimaryIn, PrimaryInRequired, SecondaryIn, SecondaryInReq:
		return true
	}
	return false
}

// IsOutput reports whether the port emits data.
func (k PortKind) IsOutput() bool {
	return k == PrimaryOut || k == SecondaryOut
}

// IsRequired reports whether an input must be connected for a build.
func (k PortKind) IsRequired() bool {
	return k == PrimaryInRequired || k == SecondaryInReq
}

// PortSpec describes a port to create on a new node.
type PortSpec struct {
	Name string   `json:"name" toml:"name"`
	Kind PortKind `json:"kind" toml:"kind"`
}
