package domain

import "time"

// InstalledPackage is one row of the catalog: a package, its version, and
// the set of files it owns on disk.
type InstalledPackage struct {
	Name         InternedString
	Version      Version
	InstalledAt  time.Time
	Dependencies []string
	Files        []string
}

// ParseDependencies parses the declared dependency constraints of the
// installed package.
func (p *InstalledPackage) ParseDependencies() ([]Constraint, error) {
	deps := make([]Constraint, 0, len(p.Dependencies))
	for _, raw := range p.Dependencies {
		c, err := ParseConstraint(raw)
		if err != nil {
			return nil, err
		}
		deps = append(deps, c)
	}
	return deps, nil
}

// DependsOn reports whether the package declares a dependency on name,
// regardless of the version bound.
func (p *InstalledPackage) DependsOn(name InternedString) bool {
	for _, raw := range p.Dependencies {
		c, err := ParseConstraint(raw)
		if err != nil {
			continue
		}
		if c.Name == name {
			return true
		}
	}
	return false
}
