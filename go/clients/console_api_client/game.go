package console_api_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/liveconsole/go/internal/models"
)

type listResponse[T any] struct {
	List []T `json:"list"`
}

type startRequest struct {
	RoundID  models.ID `json:"roundId"`
	Password string    `json:"password"`
}

type stopRequest struct {
	RoundID models.ID `json:"roundId"`
}

// ListRounds returns the rounds of an activity in display order.
func (c *ConsoleApiClient) ListRounds(ctx context.Context, activityID string) ([]models.Round, error) {
	var resp listResponse[models.Round]
	query := url.Values{ActivityIDParam: {activityID}}
	if err := c.get(ctx, RoundsEndpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("list rounds for activity %s: %w", activityID, err)
	}
	return resp.List, nil
}

// CurrentRound returns the session snapshot used for resynchronization.
func (c *ConsoleApiClient) CurrentRound(ctx context.Context, activityID string) (*models.CurrentRound, error) {
	current := &models.CurrentRound{Status: models.RoundStatusUnselected}
	query := url.Values{ActivityIDParam: {activityID}}
	if err := c.get(ctx, CurrentEndpoint, query, current); err != nil {
		return nil, fmt.Errorf("get current round for activity %s: %w", activityID, err)
	}
	return current, nil
}

// StartRound starts roundID with the presenter's credential.
func (c *ConsoleApiClient) StartRound(ctx context.Context, roundID models.ID, credential string) (*models.StartResult, error) {
	var result models.StartResult
	if err := c.post(ctx, StartEndpoint, startRequest{RoundID: roundID, Password: credential}, &result); err != nil {
		return nil, fmt.Errorf("start round %s: %w", roundID, err)
	}
	return &result, nil
}

// StopRound stops roundID and returns the final winners and ranking.
func (c *ConsoleApiClient) StopRound(ctx context.Context, roundID models.ID) (*models.StopResult, error) {
	var result models.StopResult
	if err := c.post(ctx, StopEndpoint, stopRequest{RoundID: roundID}, &result); err != nil {
		return nil, fmt.Errorf("stop round %s: %w", roundID, err)
	}
	return &result, nil
}

// Winners returns the winners of a finished round.
func (c *ConsoleApiClient) Winners(ctx context.Context, roundID models.ID) ([]models.Winner, error) {
	var resp listResponse[models.Winner]
	query := url.Values{RoundIDParam: {roundID.String()}}
	if err := c.get(ctx, WinnersEndpoint, query, &resp); err != nil {
		return nil, fmt.Errorf("get winners for round %s: %w", roundID, err)
	}
	return resp.List, nil
}
