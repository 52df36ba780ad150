package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycrm/crm-api/internal/models"
)

func pipelineCategories() models.CategoryList {
	return models.CategoryList{
		{Key: "prospecting", Label: "Prospecting"},
		{Key: "negotiation", Label: "Negotiation"},
	}
}

func TestAggregateByCategoryCountsAndBuckets(t *testing.T) {
	records := []models.Shareable{
		models.Opportunity{ID: "1", Stage: "prospecting"},
		models.Opportunity{ID: "2", Stage: "prospecting"},
		models.Opportunity{ID: "3", Stage: "retired"},
		models.Opportunity{ID: "4", Stage: ""},
	}

	tally := AggregateByCategory(records, pipelineCategories())

	assert.Equal(t, map[string]int{
		"prospecting": 2,
		"negotiation": 0,
		BucketOther:   2,
		BucketAll:     4,
	}, tally)
}

func TestAggregateByCategoryEmptyInput(t *testing.T) {
	tally := AggregateByCategory(nil, pipelineCategories())

	assert.Equal(t, 0, tally["prospecting"])
	assert.Equal(t, 0, tally["negotiation"])
	assert.Equal(t, 0, tally[BucketOther])
	assert.Equal(t, 0, tally[BucketAll])
}

func TestAggregateByCategoryIgnoresBucketNamedStages(t *testing.T) {
	// A record whose category happens to be "all" or "other" must not
	// corrupt the reserved buckets.
	records := []models.Shareable{
		models.Opportunity{ID: "1", Stage: "all"},
		models.Opportunity{ID: "2", Stage: "other"},
	}

	tally := AggregateByCategory(records, pipelineCategories())
	assert.Equal(t, 2, tally[BucketOther])
	assert.Equal(t, 2, tally[BucketAll])
}
