// Package activity resolves which activity the console drives: an explicitly
// supplied identifier wins, otherwise the one saved by the previous launch.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/liveconsole/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNoActivity is returned when no identifier was supplied and none is saved.
var ErrNoActivity = errors.New("no activity id supplied and none saved")

// Store persists the identifier between launches.
type Store interface {
	ActivityID(ctx context.Context) (string, error)
	SetActivityID(ctx context.Context, id string) error
}

// Lookup fetches activity details from the console API.
type Lookup interface {
	GetActivity(ctx context.Context, activityID string) (*models.Activity, error)
}

// Resolver combines the store and the API lookup.
type Resolver struct {
	store  Store
	lookup Lookup
}

// NewResolver creates a resolver. A nil lookup skips verification.
func NewResolver(store Store, lookup Lookup) *Resolver {
	return &Resolver{store: store, lookup: lookup}
}

// Resolve picks the activity identifier, verifies it exists and saves it for
// the next launch.
func (r *Resolver) Resolve(ctx context.Context, supplied string) (*models.Activity, error) {
	id := strings.TrimSpace(supplied)
	source := "supplied"

	saved, err := r.store.ActivityID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read saved activity: %w", err)
	}
	if id == "" {
		id = saved
		source = "saved"
	}
	if id == "" {
		return nil, ErrNoActivity
	}

	activity := &models.Activity{ID: models.ID(id)}
	if r.lookup != nil {
		found, err := r.lookup.GetActivity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("verify activity %s: %w", id, err)
		}
		activity = found
		if activity.ID.IsZero() {
			activity.ID = models.ID(id)
		}
	}

	if id != saved {
		if err := r.store.SetActivityID(ctx, id); err != nil {
			return nil, fmt.Errorf("save activity: %w", err)
		}
	}

	event := log.Info()
	if activity.Status == models.ActivityStatusEnded {
		event = log.Warn()
	}
	event.
		Str("activity_id", id).
		Str("source", source).
		Str("name", activity.Name).
		Int("status", int(activity.Status)).
		Msg("activity resolved")

	return activity, nil
}
