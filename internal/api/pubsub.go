package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizarena/internal/domain"
)

const maxConcurrent = 100

// PublishNotification delivers a lobby or game message to exactly its
// recipients' channels.
func (a *API) PublishNotification(ctx context.Context, e domain.EventNotificationRequested) error {
	data := encodeMessage(e.Message)
	if data == nil {
		return fmt.Errorf("pubsub: unsupported message %T", e.Message)
	}

	return a.fanOut(ctx, e.Recipients, e.Message.MessageType(), data)
}

func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	recipients := make([]string, 0, len(l.Entries))
	for _, entry := range l.Entries {
		recipients = append(recipients, entry.PlayerID)
	}

	return a.fanOut(ctx, recipients, e.Name(), encodeLeaderboard(l))
}

// PublishGameEnded announces a finished run on the shared games channel.
func (a *API) PublishGameEnded(ctx context.Context, e domain.EventGameEnded) error {
	r := e.Result

	b, err := json.Marshal(GameEndedMessage{
		Type:       "game_ended",
		RunID:      r.RunID,
		GameID:     r.GameID,
		QuizID:     r.QuizID,
		Scoreboard: r.Scoreboard,
		EndTime:    r.EndTime.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", e.Name(), err)
	}

	return a.redis.Publish(ctx, a.GamesChannel(), b).Err()
}

func (a *API) fanOut(ctx context.Context, recipients []string, kind string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", kind, err)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, player := range recipients {
		eg.Go(func() error {
			return a.redis.Publish(ctx, a.PlayerChannel(player), b).Err()
		})
	}

	return eg.Wait()
}

func (a *API) PlayerChannel(player string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, player)
}

func (a *API) GamesChannel() string {
	return fmt.Sprintf("%s:games", a.prefix)
}
