// Package domain contains the core domain models for the package manager:
// versions and constraints, recipes, installed packages and the dependency
// graph.
package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/zerr"
)

// Version is a strict MAJOR.MINOR.PATCH triple. Prerelease and build
// metadata are rejected at parse time.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a strict semantic version string.
func ParseVersion(s string) (Version, error) {
	parsed, err := semver.StrictNewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, zerr.With(zerr.Wrap(ErrVersionParse, err.Error()), "input", s)
	}
	if parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return Version{}, zerr.With(zerr.Wrap(ErrVersionParse, "prerelease or build metadata"), "input", s)
	}
	return Version{v: parsed}, nil
}

// MustParseVersion parses a version and panics on failure. Test helper.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether the version is the uninitialized zero value.
func (v Version) IsZero() bool {
	return v.v == nil
}

// Compare returns -1, 0 or 1 depending on whether v is lower than, equal
// to, or greater than o. Comparison is lexicographic on the integer triple.
func (v Version) Compare(o Version) int {
	if v.v == nil || o.v == nil {
		switch {
		case v.v == nil && o.v == nil:
			return 0
		case v.v == nil:
			return -1
		default:
			return 1
		}
	}
	return v.v.Compare(o.v)
}

// Equal reports whether two versions are the same triple.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

func (v Version) String() string {
	if v.v == nil {
		return "0.0.0"
	}
	return v.v.String()
}

// Op is a constraint comparison operator.
type Op string

const (
	// OpAny accepts any installed version.
	OpAny Op = ""
	// OpEq requires an exact version match.
	OpEq Op = "="
	// OpGTE requires a version greater than or equal to the bound.
	OpGTE Op = ">="
	// OpGT requires a version strictly greater than the bound.
	OpGT Op = ">"
	// OpLTE requires a version less than or equal to the bound.
	OpLTE Op = "<="
	// OpLT requires a version strictly less than the bound.
	OpLT Op = "<"
)

// Constraint is a parsed dependency declaration: a package name and an
// optional version bound.
type Constraint struct {
	Name    InternedString
	Op      Op
	Version Version
}

// ParseConstraint parses `name` or `name OP version`. The grammar is
// whitespace-insensitive; a bare name accepts any version.
func ParseConstraint(s string) (Constraint, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		name := fields[0]
		if strings.ContainsAny(name, "=<>") {
			// `name>=1.0.0` without spaces: split at the first operator rune.
			idx := strings.IndexAny(name, "=<>")
			if idx == 0 {
				return Constraint{}, zerr.With(zerr.Wrap(ErrConstraintParse, "missing package name"), "input", s)
			}
			rest := name[idx:]
			return parseBound(s, name[:idx], rest)
		}
		return Constraint{Name: NewInternedString(strings.ToLower(name))}, nil
	case 2:
		name := fields[0]
		if idx := strings.IndexAny(name, "=<>"); idx > 0 {
			// `name>= 1.0.0`
			return parseBound(s, name[:idx], name[idx:]+fields[1])
		}
		return parseBound(s, name, fields[1])
	case 3:
		return parseBound(s, fields[0], fields[1]+fields[2])
	default:
		return Constraint{}, zerr.With(zerr.Wrap(ErrConstraintParse, "wrong number of fields"), "input", s)
	}
}

// parseBound parses the `OP version` tail of a constraint. The operator and
// version may arrive glued together (`>=1.0.0`).
func parseBound(input, name, bound string) (Constraint, error) {
	if name == "" {
		return Constraint{}, zerr.With(zerr.Wrap(ErrConstraintParse, "missing package name"), "input", input)
	}
	var op Op
	switch {
	case strings.HasPrefix(bound, ">="):
		op = OpGTE
	case strings.HasPrefix(bound, "<="):
		op = OpLTE
	case strings.HasPrefix(bound, ">"):
		op = OpGT
	case strings.HasPrefix(bound, "<"):
		op = OpLT
	case strings.HasPrefix(bound, "="):
		op = OpEq
	default:
		return Constraint{}, zerr.With(zerr.With(zerr.Wrap(ErrConstraintParse, "unknown operator"), "input", input), "operator", bound)
	}

	ver, err := ParseVersion(strings.TrimPrefix(bound, string(op)))
	if err != nil {
		return Constraint{}, zerr.With(zerr.Wrap(ErrConstraintParse, "invalid version bound"), "input", input)
	}

	return Constraint{
		Name:    NewInternedString(strings.ToLower(name)),
		Op:      op,
		Version: ver,
	}, nil
}

// Matches reports whether an installed version satisfies the constraint.
func (c Constraint) Matches(v Version) bool {
	switch c.Op {
	case OpAny:
		return true
	case OpEq:
		return v.Compare(c.Version) == 0
	case OpGTE:
		return v.Compare(c.Version) >= 0
	case OpGT:
		return v.Compare(c.Version) > 0
	case OpLTE:
		return v.Compare(c.Version) <= 0
	case OpLT:
		return v.Compare(c.Version) < 0
	default:
		return false
	}
}

func (c Constraint) String() string {
	if c.Op == OpAny {
		return c.Name.String()
	}
	return c.Name.String() + " " + string(c.Op) + " " + c.Version.String()
}
