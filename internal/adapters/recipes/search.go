package recipes

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.ravenpm.dev/raven/internal/core/domain"
)

// Match tiers, best first. Exact-prefix beats substring beats subsequence;
// ties within a tier resolve by name.
const (
	tierPrefix = iota
	tierSubstring
	tierSubsequence
)

// Search returns recipes whose names match query, ranked by match quality.
// Matching is case-insensitive.
func (s *Store) Search(query string) ([]*domain.Recipe, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	type ranked struct {
		name string
		tier int
	}

	// The subsequence tier comes from the fuzzy matcher; prefix and
	// substring matches are upgraded to their own tiers.
	subsequence := make(map[string]bool, len(names))
	for _, m := range fuzzy.Find(q, names) {
		subsequence[m.Str] = true
	}

	var results []ranked
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, q):
			results = append(results, ranked{name, tierPrefix})
		case strings.Contains(name, q):
			results = append(results, ranked{name, tierSubstring})
		case subsequence[name]:
			results = append(results, ranked{name, tierSubsequence})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].tier != results[j].tier {
			return results[i].tier < results[j].tier
		}
		return results[i].name < results[j].name
	})

	out := make([]*domain.Recipe, 0, len(results))
	for _, r := range results {
		recipe, err := s.Load(r.name)
		if err != nil {
			return nil, err
		}
		out = append(out, recipe)
	}
	return out, nil
}
