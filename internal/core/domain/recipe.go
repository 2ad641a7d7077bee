package domain

import (
	"runtime"
	"strings"

	"go.trai.ch/zerr"
)

// hostArch maps the Go architecture name to the uname-style identifier
// recipes declare.
func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return runtime.GOARCH
	}
}

// Recipe is the declarative description of how to fetch, build and install
// one package. Recipes are immutable once loaded.
type Recipe struct {
	Name            string   `toml:"name"`
	Version         string   `toml:"version"`
	Description     string   `toml:"description"`
	TargetArch      string   `toml:"target_arch"`
	Dependencies    []string `toml:"dependencies"`
	SourceURL       string   `toml:"source_url"`
	SHA256Sum       string   `toml:"sha256_sum"`
	BuildCommands   []string `toml:"build_commands"`
	InstallCommands []string `toml:"install_commands"`
}

// Validate checks the structural invariants of a loaded recipe: a non-empty
// name, a strict semantic version, a 64-char lowercase hex checksum, parseable
// dependency constraints, and a target architecture matching the host.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return zerr.Wrap(ErrRecipeParse, "recipe name is empty")
	}
	if _, err := ParseVersion(r.Version); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(ErrRecipeParse, "invalid version"), "name", r.Name), "version", r.Version)
	}
	if !validSHA256(r.SHA256Sum) {
		return zerr.With(zerr.Wrap(ErrRecipeParse, "sha256_sum must be 64 lowercase hex characters"), "name", r.Name)
	}
	if _, err := r.ParseDependencies(); err != nil {
		return zerr.With(zerr.Wrap(err, "invalid recipe"), "name", r.Name)
	}
	if r.TargetArch != "" && r.TargetArch != hostArch() {
		err := zerr.With(zerr.Wrap(ErrRecipeParse, "recipe targets a different architecture"), "name", r.Name)
		err = zerr.With(err, "target_arch", r.TargetArch)
		return zerr.With(err, "host_arch", hostArch())
	}
	return nil
}

func validSHA256(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// MustVersion returns the parsed recipe version. Validate must have
// succeeded first.
func (r *Recipe) MustVersion() Version {
	v, err := ParseVersion(r.Version)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseDependencies parses every declared dependency constraint.
func (r *Recipe) ParseDependencies() ([]Constraint, error) {
	deps := make([]Constraint, 0, len(r.Dependencies))
	for _, raw := range r.Dependencies {
		c, err := ParseConstraint(raw)
		if err != nil {
			return nil, err
		}
		deps = append(deps, c)
	}
	return deps, nil
}
