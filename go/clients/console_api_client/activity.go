package console_api_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/liveconsole/go/internal/models"
)

// GetActivity returns the activity detail for activityID.
func (c *ConsoleApiClient) GetActivity(ctx context.Context, activityID string) (*models.Activity, error) {
	var activity models.Activity
	if err := c.get(ctx, ActivityEndpoint+url.PathEscape(activityID), nil, &activity); err != nil {
		return nil, fmt.Errorf("get activity %s: %w", activityID, err)
	}
	return &activity, nil
}
