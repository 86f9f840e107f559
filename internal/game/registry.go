package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/item"
	"github.com/victornm/quizarena/internal/jackpot"
	"github.com/victornm/quizarena/internal/protocol"
	"github.com/victornm/quizarena/internal/rng"
	"github.com/victornm/quizarena/internal/telemetry"
)

const (
	DefaultMaxGames  = 1000
	DefaultRetention = 10 * time.Minute
)

type RegistryConfig struct {
	// MaxGames bounds the id space: ids are drawn from [0, MaxGames).
	MaxGames int
	// Retention is how long an ended game stays queryable before eviction.
	Retention time.Duration
	Now       func() time.Time

	Notifier        Notifier
	Results         ResultStore
	Ledger          LedgerStore
	Rand            rng.Source
	Items           *item.Assigner
	ItemProbability int
	Jackpot         jackpot.Config
}

// Registry owns every game of the process, keyed by game id.
type Registry struct {
	c RegistryConfig

	mu    sync.Mutex
	games map[int]*Game
}

func NewRegistry(c RegistryConfig) *Registry {
	if c.MaxGames <= 0 {
		c.MaxGames = DefaultMaxGames
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Registry{
		c:     c,
		games: make(map[int]*Game),
	}
}

type StartRequest struct {
	Quiz      domain.Quiz
	Players   []domain.Player
	Questions []domain.Question
	Protocol  *protocol.Protocol
}

// Start creates a game in the lowest free id slot and starts it while the
// registry is locked, so lookups never see a game that has not started. It
// fails with ResourceExhausted when every slot is taken.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*Game, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked(ctx, r.c.Now())

	id, ok := r.freeIDLocked()
	if !ok {
		return nil, errors.New(errors.CodeResourceExhausted,
			errors.WithMessagef("no free game slot: all %d ids in use", r.c.MaxGames))
	}

	g := New(Config{
		ID:              id,
		RunID:           runID.String(),
		Quiz:            req.Quiz,
		Players:         req.Players,
		Questions:       req.Questions,
		Protocol:        req.Protocol,
		Notifier:        r.c.Notifier,
		Results:         r.c.Results,
		Ledger:          r.c.Ledger,
		Rand:            r.c.Rand,
		Items:           r.c.Items,
		ItemProbability: r.c.ItemProbability,
		Jackpot:         r.c.Jackpot,
		Now:             r.c.Now,
	})
	if err := g.Start(ctx); err != nil {
		return nil, err
	}
	r.games[id] = g

	return g, nil
}

func (r *Registry) freeIDLocked() (int, bool) {
	for id := 0; id < r.c.MaxGames; id++ {
		if _, ok := r.games[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

func (r *Registry) Get(id int) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game not found: id=%d", id), errors.WithDetail("game_id", id))
	}
	return g, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.games)
}

// Evict removes games that ended at least Retention before now and returns
// how many were removed.
func (r *Registry) Evict(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.evictLocked(ctx, now)
}

func (r *Registry) evictLocked(ctx context.Context, now time.Time) int {
	var n int
	for id, g := range r.games {
		endedAt, ended := g.EndedAt()
		if !ended || now.Sub(endedAt) < r.c.Retention {
			continue
		}

		delete(r.games, id)
		n++
		slog.DebugContext(ctx, "game: evicted", "game_id", id, "run_id", g.RunID())
	}

	telemetry.GamesEvicted.Add(float64(n))
	return n
}

// Run evicts expired games every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Evict(ctx, r.c.Now()); n > 0 {
				slog.InfoContext(ctx, "game: evicted ended games", "count", n)
			}
		}
	}
}
