package service

import "github.com/relaycrm/crm-api/internal/models"

// Sidebar bucket keys that exist for every view in addition to the
// configured category keys.
const (
	BucketOther = "other"
	BucketAll   = "all"
)

// AggregateByCategory tallies the filtered-but-unpaginated record set into
// per-category counts for the sidebar. Every defined category appears in the
// result even when zero; records with an unknown or empty category land in
// the "other" bucket, and "all" is the total across every bucket. Single
// pass, no side effects.
func AggregateByCategory(records []models.Shareable, categories models.CategoryList) map[string]int {
	tally := make(map[string]int, len(categories)+2)
	for _, def := range categories {
		tally[def.Key] = 0
	}
	tally[BucketOther] = 0

	for _, rec := range records {
		key := rec.Category()
		if _, defined := tally[key]; defined && key != BucketOther && key != BucketAll {
			tally[key]++
		} else {
			tally[BucketOther]++
		}
	}

	tally[BucketAll] = len(records)
	return tally
}
