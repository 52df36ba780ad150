package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterStateStartsOnPageOne(t *testing.T) {
	state := NewFilterState()
	assert.Equal(t, 1, state.CurrentPage)
	assert.Empty(t, state.ActiveCategories)
	assert.Empty(t, state.Query)
}

func TestToggleCategoryFlipsMembership(t *testing.T) {
	state := NewFilterState()

	state.ToggleCategory("won")
	assert.True(t, state.HasCategory("won"))

	state.ToggleCategory("won")
	assert.False(t, state.HasCategory("won"))
}

func TestToggleCategoryResetsPage(t *testing.T) {
	state := NewFilterState()
	state.CurrentPage = 5

	state.ToggleCategory("prospecting")
	assert.Equal(t, 1, state.CurrentPage)
}

func TestSetQueryResetsPage(t *testing.T) {
	state := NewFilterState()
	state.CurrentPage = 3

	state.SetQuery("acme")
	assert.Equal(t, "acme", state.Query)
	assert.Equal(t, 1, state.CurrentPage)
}

func TestSetPageRejectsBelowOne(t *testing.T) {
	state := NewFilterState()
	state.CurrentPage = 4

	assert.False(t, state.SetPage(0))
	assert.False(t, state.SetPage(-2))
	assert.Equal(t, 4, state.CurrentPage)

	assert.True(t, state.SetPage(7))
	assert.Equal(t, 7, state.CurrentPage)
}

func TestOnRecordRemovedStepsBackWhenPageEmpties(t *testing.T) {
	// 841 filtered records at 20 per page puts the last page at 43 with a
	// single record on it. Deleting that record must move the user to 42.
	state := NewFilterState()
	state.CurrentPage = 43

	changed := state.OnRecordRemoved(841, 20)
	assert.True(t, changed)
	assert.Equal(t, 42, state.CurrentPage)
}

func TestOnRecordRemovedKeepsPageWhenStillPopulated(t *testing.T) {
	state := NewFilterState()
	state.CurrentPage = 2

	changed := state.OnRecordRemoved(50, 20)
	assert.False(t, changed)
	assert.Equal(t, 2, state.CurrentPage)
}

func TestOnRecordRemovedNeverGoesBelowOne(t *testing.T) {
	state := NewFilterState()
	state.CurrentPage = 1

	changed := state.OnRecordRemoved(1, 20)
	assert.False(t, changed)
	assert.Equal(t, 1, state.CurrentPage)
}

func TestEffectiveCategoriesFallsBackToViewDefault(t *testing.T) {
	state := NewFilterState()
	viewDefault := []string{"new", "contacted"}

	assert.Equal(t, viewDefault, state.EffectiveCategories(viewDefault))

	state.ToggleCategory("converted")
	assert.Equal(t, []string{"converted"}, state.EffectiveCategories(viewDefault))
}
