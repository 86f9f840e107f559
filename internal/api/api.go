package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/event"
	"github.com/victornm/quizarena/internal/leaderboard"
	"github.com/victornm/quizarena/internal/ledger"
	"github.com/victornm/quizarena/internal/score"
	"github.com/victornm/quizarena/internal/session"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Leaderboard  LeaderboardReader
	Ledger       LedgerReader
	Results      ResultReader
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, req leaderboard.GetLeaderboardRequest) (*domain.Leaderboard, error)
}

type LedgerReader interface {
	Load(ctx context.Context, runID string) (map[string]ledger.Entry, error)
}

type ResultReader interface {
	ListResults(ctx context.Context, req score.ListResultsRequest) ([]score.Row, error)
}

type API struct {
	ss *session.Service
	ls LeaderboardReader
	ld LedgerReader
	rs ResultReader

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ss:     c.Session,
		ls:     c.Leaderboard,
		ld:     c.Ledger,
		rs:     c.Results,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&sessionServiceDesc, a)
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerRoutes(c.HTTP)
	}

	// Register event handlers
	c.EventBus.SubscribeOrdered(domain.EventNameNotificationRequested, func(ctx context.Context, e event.Event) error {
		return a.PublishNotification(ctx, e.(domain.EventNotificationRequested))
	})
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})
	c.EventBus.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return a.PublishGameEnded(ctx, e.(domain.EventGameEnded))
	})

	return a
}
