// Package ledger dumps ended games' status ledgers into Redis hashes, one
// field per player.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/protocol"
)

const defaultTTL = 24 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewStore(c Config) *Store {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}

	return &Store{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    c.TTL,
	}
}

// DumpLedger writes every player's record as JSON into the run's hash and
// sets its expiry, atomically.
func (s *Store) DumpLedger(ctx context.Context, runID string, snap protocol.Snapshot) error {
	if len(snap) == 0 {
		return nil
	}

	fields := make(map[string]any, len(snap))
	for playerID, r := range snap {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode record of %s: %w", playerID, err)
		}
		fields[playerID] = string(b)
	}

	key := s.key(runID)
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fields)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dump ledger: %w", err)
	}

	return nil
}

// Entry is a stored player record, checkpoint to value. Unset checkpoints
// hold nil.
type Entry map[protocol.Checkpoint]any

// Load reads back a dumped ledger.
func (s *Store) Load(ctx context.Context, runID string) (map[string]Entry, error) {
	res, err := s.redis.HGetAll(ctx, s.key(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("ledger not found: run=%s", runID))
	}

	out := make(map[string]Entry, len(res))
	for playerID, raw := range res {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode record of %s: %w", playerID, err)
		}
		out[playerID] = e
	}

	return out, nil
}

func (s *Store) key(runID string) string {
	return fmt.Sprintf("%s:run:%s:ledger", s.prefix, runID)
}
