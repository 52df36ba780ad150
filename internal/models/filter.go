package models

// FilterState is the per (user, view) session state behind an index view:
// which category keys are toggled on, the free-text query, and the current
// 1-based page. Mutations go through the transition methods so page resets
// stay consistent; persistence is last-write-wins.
type FilterState struct {
	ActiveCategories []string `json:"active_categories"`
	Query            string   `json:"query"`
	CurrentPage      int      `json:"current_page"`
}

// NewFilterState returns the initial state for a view.
func NewFilterState() *FilterState {
	return &FilterState{CurrentPage: 1}
}

// HasCategory reports whether key is currently toggled on.
func (s *FilterState) HasCategory(key string) bool {
	for _, k := range s.ActiveCategories {
		if k == key {
			return true
		}
	}
	return false
}

// ToggleCategory flips membership of key and resets to the first page.
func (s *FilterState) ToggleCategory(key string) {
	for i, k := range s.ActiveCategories {
		if k == key {
			s.ActiveCategories = append(s.ActiveCategories[:i], s.ActiveCategories[i+1:]...)
			s.CurrentPage = 1
			return
		}
	}
	s.ActiveCategories = append(s.ActiveCategories, key)
	s.CurrentPage = 1
}

// SetQuery replaces the free-text query and resets to the first page.
func (s *FilterState) SetQuery(query string) {
	s.Query = query
	s.CurrentPage = 1
}

// SetPage moves to page n. Non-positive pages are rejected as a no-op and
// the previous page is kept; the return value reports acceptance.
func (s *FilterState) SetPage(n int) bool {
	if n < 1 {
		return false
	}
	s.CurrentPage = n
	return true
}

// OnRecordRemoved recomputes the last page after one record left the
// filtered set and steps back a page when the current one fell off the end.
// Deleting the sole record on page 42 lands on 41; page 1 always stays.
// The return value reports whether the page changed.
func (s *FilterState) OnRecordRemoved(filteredCountBefore, perPage int) bool {
	if perPage < 1 {
		perPage = 1
	}
	remaining := filteredCountBefore - 1
	if remaining < 0 {
		remaining = 0
	}
	lastPage := (remaining + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	if s.CurrentPage > lastPage {
		if s.CurrentPage > 1 {
			s.CurrentPage--
		}
		return true
	}
	return false
}

// EffectiveCategories resolves the filter actually applied: an empty active
// set falls back to the caller-configured per-view default list.
func (s *FilterState) EffectiveCategories(viewDefault []string) []string {
	if len(s.ActiveCategories) > 0 {
		return s.ActiveCategories
	}
	return viewDefault
}
