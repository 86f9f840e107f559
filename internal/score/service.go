// Package score persists end-of-game scoreboards.
package score

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/event"
	"github.com/victornm/quizarena/internal/item"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb *event.Bus
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{
		eb: c.EventBus,
		db: c.DB,
	}
}

// Row is one player's line of a stored result.
type Row struct {
	PlayerID string
	Score    int
	Rank     int
}

// Rows flattens a scoreboard into ranked rows, best first. Equal scores are
// ordered by player id.
func Rows(sb domain.Scoreboard) []Row {
	rows := make([]Row, 0, len(sb))
	for i, id := range item.Rank(sb) {
		rows = append(rows, Row{PlayerID: id, Score: sb[id], Rank: i + 1})
	}
	return rows
}

// SaveResults stores the final scoreboard of a run in one transaction and
// announces the ended game. A run can only be saved once.
func (s *Service) SaveResults(ctx context.Context, r domain.Result) error {
	if err := s.insertResults(ctx, r); err != nil {
		return err
	}

	slog.InfoContext(ctx, "score: results saved", "run_id", r.RunID, "game_id", r.GameID, "players", len(r.Scoreboard))

	s.eb.Publish(ctx, domain.EventGameEnded{
		Result: r,
	})

	return nil
}

func (s *Service) insertResults(ctx context.Context, r domain.Result) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const stmt = `
INSERT INTO game_results (run_id, game_id, quiz_id, player_id, score, rank, end_time)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	b := &pgx.Batch{}
	for _, row := range Rows(r.Scoreboard) {
		b.Queue(stmt, r.RunID, r.GameID, r.QuizID, row.PlayerID, row.Score, row.Rank, r.EndTime)
	}

	if err = tx.SendBatch(ctx, b).Close(); err != nil {
		var pgErr *pgconn.PgError
		const codeUniqueViolation = "23505"
		if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("results already saved: run=%s", r.RunID),
				errors.WithCause(err))
		}
		return fmt.Errorf("insert results: %w", err)
	}

	return tx.Commit(ctx)
}

type ListResultsRequest struct {
	RunID string
}

// ListResults returns the stored rows of a run, best first.
func (s *Service) ListResults(ctx context.Context, req ListResultsRequest) ([]Row, error) {
	const stmt = `
SELECT player_id, score, rank
FROM game_results
WHERE run_id = $1
ORDER BY rank;`

	rows, err := s.db.Query(ctx, stmt, req.RunID)
	if err != nil {
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Row, error) {
		var row Row
		if err := r.Scan(&row.PlayerID, &row.Score, &row.Rank); err != nil {
			return Row{}, err
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("results not found: run=%s", req.RunID))
	}

	return out, nil
}
