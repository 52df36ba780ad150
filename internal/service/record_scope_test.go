package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycrm/crm-api/internal/models"
)

func TestVisibleRecordsAppliesDeciderAndPredicates(t *testing.T) {
	records := []models.Shareable{
		models.Opportunity{ID: "1", UserID: "u1", Name: "Acme renewal", Stage: "prospecting"},
		models.Opportunity{ID: "2", UserID: "u1", Name: "Globex intro", Stage: "negotiation"},
		models.Opportunity{ID: "3", UserID: "u2", Name: "Acme upsell", Stage: "prospecting", Access: models.AccessPrivate},
		models.Opportunity{ID: "4", UserID: "u2", Name: "Initech acme deal", Stage: "prospecting", Access: models.AccessPublic},
	}

	decider := NewAccessDecider("u1", nil)
	out := VisibleRecords(records, decider,
		CategoryPredicate([]string{"prospecting"}),
		QueryPredicate("acme"),
	)

	ids := make([]string, 0, len(out))
	for _, rec := range out {
		ids = append(ids, rec.RecordID())
	}
	assert.Equal(t, []string{"1", "4"}, ids, "input order must be preserved")
}

func TestVisibleRecordsNilPredicatesMeanVisibilityOnly(t *testing.T) {
	records := []models.Shareable{
		models.Opportunity{ID: "1", UserID: "u1"},
		models.Opportunity{ID: "2", UserID: "u2", Access: models.AccessPrivate},
	}

	out := VisibleRecords(records, NewAccessDecider("u1", nil), nil, nil)
	assert.Len(t, out, 1)
	assert.Equal(t, "1", out[0].RecordID())
}

func TestCategoryPredicateEmptyKeysIsNil(t *testing.T) {
	assert.Nil(t, CategoryPredicate(nil))
	assert.Nil(t, CategoryPredicate([]string{}))
}

func TestQueryPredicateBlankIsNil(t *testing.T) {
	assert.Nil(t, QueryPredicate(""))
	assert.Nil(t, QueryPredicate("   "))
}

func TestQueryPredicateCaseInsensitive(t *testing.T) {
	pred := QueryPredicate("ACME")
	assert.True(t, pred(models.Opportunity{Name: "acme corp"}))
	assert.False(t, pred(models.Opportunity{Name: "globex"}))
}
