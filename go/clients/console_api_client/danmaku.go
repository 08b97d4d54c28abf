package console_api_client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mcdev12/liveconsole/go/internal/models"
)

// DanmakuQuery pages through an activity's comments. Zero values leave the
// server defaults.
type DanmakuQuery struct {
	Page     int
	PageSize int
}

// ListDanmaku returns one page of audience comments for an activity.
func (c *ConsoleApiClient) ListDanmaku(ctx context.Context, activityID string, q DanmakuQuery) (*models.DanmakuPage, error) {
	query := url.Values{ActivityIDParam: {activityID}}
	if q.Page > 0 {
		query.Set(PageParam, strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		query.Set(PageSizeParam, strconv.Itoa(q.PageSize))
	}

	page := &models.DanmakuPage{}
	if err := c.get(ctx, DanmakuEndpoint, query, page); err != nil {
		return nil, fmt.Errorf("list danmaku for activity %s: %w", activityID, err)
	}
	return page, nil
}
