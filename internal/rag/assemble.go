package rag

import (
	"sort"
	"strings"

	"case-rag/internal/models"
)

// Merge combines semantic and name-matched contexts. Labels are unique and a
// semantic entry wins over a name match with the same label. The result is
// ordered by score, keeping input order on ties.
func Merge(semantic, named []models.ScoredContext) []models.ScoredContext {
	seen := make(map[string]struct{}, len(semantic)+len(named))
	merged := make([]models.ScoredContext, 0, len(semantic)+len(named))

	for _, group := range [][]models.ScoredContext{semantic, named} {
		for _, c := range group {
			if _, dup := seen[c.Label]; dup {
				continue
			}
			seen[c.Label] = struct{}{}
			merged = append(merged, c)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged
}

// Render formats contexts as "[label] content" entries separated by a blank
// line. It reports false when there is nothing to render.
func Render(contexts []models.ScoredContext) (string, bool) {
	if len(contexts) == 0 {
		return "", false
	}
	entries := make([]string, len(contexts))
	for i, c := range contexts {
		entries[i] = "[" + c.Label + "] " + c.Content
	}
	return strings.Join(entries, models.ContextSeparator), true
}
