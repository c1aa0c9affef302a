package usecase

import (
	"sort"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// Compare classifies every path of baseline and current.
// Comparison is keyed by path, so walk order never matters.
func Compare(baseline domain.Baseline, current domain.Snapshot) domain.DiffResult {
	result := domain.DiffResult{
		Modified: []string{},
		Added:    []string{},
		Deleted:  []string{},
	}

	for path, oldDigest := range baseline {
		newDigest, ok := current[path]
		switch {
		case !ok:
			result.Deleted = append(result.Deleted, path)
		case newDigest != oldDigest:
			result.Modified = append(result.Modified, path)
		default:
			result.Unchanged++
		}
	}

	for path := range current {
		if _, ok := baseline[path]; !ok {
			result.Added = append(result.Added, path)
		}
	}

	// Sort for deterministic output
	sort.Strings(result.Modified)
	sort.Strings(result.Added)
	sort.Strings(result.Deleted)

	return result
}
