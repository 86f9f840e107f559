// Package leaderboard mirrors game scoreboards into Redis sorted sets so they
// can be read from outside the engine, and announces changes at a bounded
// rate.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/event"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
	defaultTTL             = time.Hour
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// PublishInterval is the minimum gap between two leaderboard.updated
	// events of the same run.
	PublishInterval time.Duration
	// TTL is refreshed on every update, so boards of finished runs expire.
	TTL time.Duration
}

type Service struct {
	eb       *event.Bus
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
	ttl      time.Duration
}

func NewService(c Config) *Service {
	if c.PublishInterval <= 0 {
		c.PublishInterval = defaultPublishInterval
	}
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}

	s := &Service{
		eb:       c.EventBus,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: c.PublishInterval,
		ttl:      c.TTL,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

type GetLeaderboardRequest struct {
	RunID string
}

// GetLeaderboard returns every player of a run with their score, best first.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(req.RunID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard not found: run=%s", req.RunID))
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: z.Member.(string),
			Score:    int(z.Score),
		})
	}

	return &domain.Leaderboard{
		RunID:   req.RunID,
		Entries: entries,
	}, nil
}

// UpdateLeaderboard overwrites the player's score in the run's leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	sc := e.Score
	key := s.leaderboardKey(sc.RunID)

	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{
			Score:  float64(sc.TotalScore),
			Member: sc.PlayerID,
		})
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc)
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per
// run and interval. The SETNX marker is shared by every instance.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sc domain.Score) error {
	ok, err := s.redis.SetNX(ctx, s.publishMarkerKey(sc.RunID), sc.UpdateTime.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{RunID: sc.RunID})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: run=%s: %w", sc.RunID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) leaderboardKey(runID string) string {
	return fmt.Sprintf("%s:run:%s:leaderboard", s.prefix, runID)
}

func (s *Service) publishMarkerKey(runID string) string {
	return fmt.Sprintf("%s:run:%s:published", s.prefix, runID)
}
