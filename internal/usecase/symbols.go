package usecase

import (
	"sort"

	"CryptoAssist/internal/domain/models"
)

const (
	DefaultSymbolPriority = 999
	MaxPrioritySymbols    = 10
)

// SelectPrioritySymbols keeps enabled entries, stable-sorts them ascending by
// priority (unset counts as DefaultSymbolPriority) and truncates to limit.
// Entries are expected in catalog order: major pairs, then altcoins.
func SelectPrioritySymbols(entries []models.SymbolEntry, limit int) []string {
	if limit <= 0 || limit > MaxPrioritySymbols {
		limit = MaxPrioritySymbols
	}

	enabled := make([]models.SymbolEntry, 0, len(entries))
	for _, e := range entries {
		if e.Enabled && e.Symbol != "" {
			enabled = append(enabled, e)
		}
	}

	sort.SliceStable(enabled, func(i, j int) bool {
		return symbolPriority(enabled[i]) < symbolPriority(enabled[j])
	})

	if len(enabled) > limit {
		enabled = enabled[:limit]
	}

	out := make([]string, len(enabled))
	for i, e := range enabled {
		out[i] = e.Symbol
	}
	return out
}

func symbolPriority(e models.SymbolEntry) int {
	if e.Priority == nil {
		return DefaultSymbolPriority
	}
	return *e.Priority
}
