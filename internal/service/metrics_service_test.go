package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAggregatesSessionReads(t *testing.T) {
	m := NewMetricsService()

	m.ObserveSessionRead(true, 2*time.Millisecond)
	m.ObserveSessionRead(false, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.SessionHits)
	assert.Equal(t, uint64(1), snap.SessionMisses)
	assert.InDelta(t, 0.5, snap.SessionHitRatio, 0.0001)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestSnapshotCountsNotificationsAndExports(t *testing.T) {
	m := NewMetricsService()

	m.RecordShareNotification()
	m.RecordShareNotification()
	m.RecordExport(ViewOpportunities, ExportFormatCSV)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ShareNotificationsQueued)
	assert.Equal(t, uint64(1), snap.ExportsGenerated)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService

	m.ObserveHTTPRequest("GET", "/opportunities", 200, time.Millisecond)
	m.ObserveSessionRead(true, time.Millisecond)
	m.ObserveSessionWrite(time.Millisecond)
	m.RecordShareNotification()
	m.RecordExport(ViewLeads, ExportFormatPDF)

	assert.Zero(t, m.Snapshot())
	assert.NotNil(t, m.Handler())
}

func TestListingReportsSessionReads(t *testing.T) {
	m := NewMetricsService()
	store := newMemFilterStateStore()
	svc := NewListingService(store, 10, m, nil)

	// First load misses, the save makes the next load a hit.
	_, err := svc.ToggleCategory(context.Background(), "u1", ViewLeads, "new")
	require.NoError(t, err)
	_, err = svc.State(context.Background(), "u1", ViewLeads)
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.SessionMisses)
	assert.Equal(t, uint64(1), snap.SessionHits)
}
