package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

// FilterStateRepository stores per (user, view) list state in Redis. Writes
// are plain SETs, so concurrent requests resolve last-write-wins; entries
// expire with the session TTL.
type FilterStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFilterStateRepository constructs the repository.
func NewFilterStateRepository(client *redis.Client, ttl time.Duration) *FilterStateRepository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &FilterStateRepository{client: client, ttl: ttl}
}

func (r *FilterStateRepository) key(userID, view string) string {
	return fmt.Sprintf("filters:%s:%s", userID, view)
}

// Get returns the stored state or ErrCacheMiss when none exists yet.
func (r *FilterStateRepository) Get(ctx context.Context, userID, view string) (*models.FilterState, error) {
	raw, err := r.client.Get(ctx, r.key(userID, view)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get filter state: %w", err)
	}

	var state models.FilterState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal filter state: %w", err)
	}
	if state.CurrentPage < 1 {
		state.CurrentPage = 1
	}
	return &state, nil
}

// Save stores the state, refreshing the session TTL.
func (r *FilterStateRepository) Save(ctx context.Context, userID, view string, state *models.FilterState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal filter state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID, view), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set filter state: %w", err)
	}
	return nil
}

// Clear drops the stored state for (user, view).
func (r *FilterStateRepository) Clear(ctx context.Context, userID, view string) error {
	if err := r.client.Del(ctx, r.key(userID, view)).Err(); err != nil {
		return fmt.Errorf("redis delete filter state: %w", err)
	}
	return nil
}
