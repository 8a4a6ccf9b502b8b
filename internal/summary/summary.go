// Package summary counts categorical values and keeps the most frequent.
package summary

import (
	"slices"
	"strings"
)

// CategoryCount is one label with its occurrence count.
type CategoryCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Top counts rows per label and returns at most k entries by descending
// count. Ties keep the order in which labels were first encountered. Rows
// with a blank label are skipped and k <= 0 returns every label.
func Top[T any](rows []T, label func(T) string, k int) []CategoryCount {
	return count(rows, label, nil, k)
}

// TopBy is Top counting only rows whose counted field is non-blank. A label
// whose rows all lack the counted field is kept with a zero count.
func TopBy[T any](rows []T, label, counted func(T) string, k int) []CategoryCount {
	return count(rows, label, counted, k)
}

// Strings counts plain values.
func Strings(values []string, k int) []CategoryCount {
	return Top(values, func(v string) string { return v }, k)
}

func count[T any](rows []T, label, counted func(T) string, k int) []CategoryCount {
	out := make([]CategoryCount, 0)
	index := make(map[string]int)
	for _, r := range rows {
		key := strings.TrimSpace(label(r))
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, CategoryCount{Label: key})
		}
		if counted != nil && strings.TrimSpace(counted(r)) == "" {
			continue
		}
		out[i].Count++
	}

	slices.SortStableFunc(out, func(a, b CategoryCount) int {
		return b.Count - a.Count
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
