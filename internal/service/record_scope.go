package service

import (
	"strings"

	"github.com/relaycrm/crm-api/internal/models"
)

// RecordPredicate narrows a candidate collection beyond visibility.
type RecordPredicate func(models.Shareable) bool

// VisibleRecords filters the candidate collection through the decider and
// any extra predicates in a single pass, preserving input order. The result
// is recomputed on every call; nothing is cached.
func VisibleRecords(records []models.Shareable, decider AccessDecider, extra ...RecordPredicate) []models.Shareable {
	out := make([]models.Shareable, 0, len(records))
next:
	for _, rec := range records {
		if !decider.CanView(rec) {
			continue
		}
		for _, pred := range extra {
			if pred != nil && !pred(rec) {
				continue next
			}
		}
		out = append(out, rec)
	}
	return out
}

// CategoryPredicate keeps records whose category is in keys. An empty key
// set means no category narrowing at all.
func CategoryPredicate(keys []string) RecordPredicate {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return func(rec models.Shareable) bool {
		_, ok := set[rec.Category()]
		return ok
	}
}

// QueryPredicate keeps records whose search text contains the query,
// case-insensitively. A blank query matches everything.
func QueryPredicate(query string) RecordPredicate {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	return func(rec models.Shareable) bool {
		return strings.Contains(strings.ToLower(rec.SearchText()), query)
	}
}
