// Package capability records which tensor primitives each target runtime
// supports, and from which version, so lowering can refuse a target before
// emitting a primitive it cannot execute or export.
package capability

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

var (
	// ErrUnknownKind indicates a target kind that is not supported.
	ErrUnknownKind = errors.New("unknown target kind")

	// ErrInvalidVersion indicates a target version that is not semantic.
	ErrInvalidVersion = errors.New("invalid target version")
)

// Kind is a family of lowering targets.
type Kind string

// Target kinds.
const (
	// KindTensor is the in-process tensor runtime.
	KindTensor Kind = "tensor"

	// KindONNX exports the lowered program as a standard ONNX graph.
	KindONNX Kind = "onnx"

	// KindTorchScript targets a TorchScript-style tracing exporter.
	KindTorchScript Kind = "torchscript"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{KindTensor, KindONNX, KindTorchScript}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// DefaultVersion returns the version assumed when a target names none.
func (k Kind) DefaultVersion() string {
	if k == KindTensor {
		return "v1.0.0"
	}
	return "v1.13.0"
}

// Target is a target kind at a specific runtime version.
type Target struct {
	Kind    Kind
	Version string // canonical semver, e.g. "v1.8.0"
}

// NewTarget validates kind and version. An empty version selects the kind's
// default; a missing "v" prefix is added.
func NewTarget(kind Kind, version string) (Target, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return Target{}, err
	}
	if version == "" {
		version = kind.DefaultVersion()
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	if !semver.IsValid(version) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return Target{Kind: kind, Version: semver.Canonical(version)}, nil
}

// DefaultTarget returns kind at its default version.
func DefaultTarget(kind Kind) Target {
	return Target{Kind: kind, Version: kind.DefaultVersion()}
}

// ParseTarget parses "kind" or "kind@version", e.g. "onnx@v1.7.0".
func ParseTarget(s string) (Target, error) {
	kind, version, _ := strings.Cut(s, "@")
	return NewTarget(Kind(kind), version)
}

// String renders the target as "kind@version".
func (t Target) String() string {
	return string(t.Kind) + "@" + t.Version
}

// AtLeast reports whether the target version is at least v.
func (t Target) AtLeast(v string) bool {
	return semver.Compare(t.Version, v) >= 0
}
