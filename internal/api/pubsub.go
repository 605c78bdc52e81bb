package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victornm/raboard/internal/domain"
)

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardComputed notifies the subscribers of a game that a fresh leaderboard is available.
func (a *API) PublishLeaderboardComputed(ctx context.Context, e domain.EventLeaderboardComputed) error {
	return a.publishNotification(ctx, gameChannel(a.prefix, e.Snapshot.GameID), e.Name(), toLeaderboard(&e.Snapshot))
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func gameChannel(prefix, gameID string) string {
	return fmt.Sprintf("%s:game:%s", prefix, gameID)
}
