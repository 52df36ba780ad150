package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/pkg/jobs"
)

// ShareNotification is the job payload for one sharing change.
type ShareNotification struct {
	RecordType string   `json:"record_type"`
	RecordID   string   `json:"record_id"`
	RecordName string   `json:"record_name"`
	ActorID    string   `json:"actor_id"`
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
}

// ShareNotifier fans out sharing changes to the background queue so the
// affected users can be told a record appeared in or vanished from their
// view. Notifications are enqueued after the save commits; a dropped
// notification never rolls back a save.
type ShareNotifier struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewShareNotifier constructs the notifier. A nil queue disables delivery,
// which keeps tests free of worker plumbing. metrics may be nil.
func NewShareNotifier(queue *jobs.Queue, metrics *MetricsService, logger *zap.Logger) *ShareNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareNotifier{queue: queue, metrics: metrics, logger: logger}
}

// NotifyDiff enqueues one notification job for a non-empty grant diff.
func (n *ShareNotifier) NotifyDiff(_ context.Context, recordType string, rec models.Shareable, actorID string, diff models.PermissionDiff) {
	if n.queue == nil || diff.Empty() {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: "share_changed",
		Payload: ShareNotification{
			RecordType: recordType,
			RecordID:   rec.RecordID(),
			RecordName: rec.SearchText(),
			ActorID:    actorID,
			Added:      diff.Added,
			Removed:    diff.Removed,
		},
	}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("failed to enqueue share notification",
			zap.String("record_type", recordType),
			zap.String("record_id", rec.RecordID()),
			zap.Error(err),
		)
		return
	}
	n.metrics.RecordShareNotification()
}
