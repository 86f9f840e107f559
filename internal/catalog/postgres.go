package catalog

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/rng"
)

type PostgresConfig struct {
	DB               *pgxpool.Pool
	Rand             rng.Source
	QuestionsPerGame int
}

// Postgres reads the catalog from the quizzes, questions, answers and players
// tables.
type Postgres struct {
	db    *pgxpool.Pool
	rand  rng.Source
	limit int
}

func NewPostgres(c PostgresConfig) *Postgres {
	return &Postgres{
		db:    c.DB,
		rand:  c.Rand,
		limit: c.QuestionsPerGame,
	}
}

func (p *Postgres) Quiz(ctx context.Context, quizID int) (*domain.Quiz, error) {
	const stmt = `SELECT quiz_id, title, min_participants FROM quizzes WHERE quiz_id = $1;`

	var q domain.Quiz
	err := p.db.QueryRow(ctx, stmt, quizID).Scan(&q.QuizID, &q.Title, &q.MinParticipants)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errQuizNotFound(quizID)
	}
	if err != nil {
		return nil, unavailable("get quiz", err)
	}

	return &q, nil
}

func (p *Postgres) RandomQuestions(ctx context.Context, quizID int) ([]domain.Question, error) {
	const stmt = `
SELECT q.question_id, q.question_text, a.answer_id, a.answer_text
FROM questions q
JOIN answers a ON a.question_id = q.question_id
WHERE q.quiz_id = $1
ORDER BY q.position, q.question_id, a.position;`

	rows, err := p.db.Query(ctx, stmt, quizID)
	if err != nil {
		return nil, unavailable("list questions", err)
	}

	type row struct {
		questionID, questionText, answerID, answerText string
	}
	flat, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		var x row
		err := r.Scan(&x.questionID, &x.questionText, &x.answerID, &x.answerText)
		return x, err
	})
	if err != nil {
		return nil, unavailable("list questions", err)
	}

	var qs []domain.Question
	for _, x := range flat {
		if len(qs) == 0 || qs[len(qs)-1].QuestionID != x.questionID {
			qs = append(qs, domain.Question{QuestionID: x.questionID, QuestionText: x.questionText})
		}
		last := &qs[len(qs)-1]
		last.Answers = append(last.Answers, domain.Answer{AnswerID: x.answerID, AnswerText: x.answerText})
	}

	return pick(p.rand, qs, p.limit), nil
}

func (p *Postgres) Player(ctx context.Context, playerID string) (*domain.Player, error) {
	const stmt = `SELECT player_id, nickname FROM players WHERE player_id = $1;`

	var pl domain.Player
	err := p.db.QueryRow(ctx, stmt, playerID).Scan(&pl.ID, &pl.Nickname)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errPlayerNotFound(playerID)
	}
	if err != nil {
		return nil, unavailable("get player", err)
	}

	return &pl, nil
}

func (p *Postgres) PlayerByNickname(ctx context.Context, nickname string) (*domain.Player, error) {
	const stmt = `SELECT player_id, nickname FROM players WHERE nickname = $1;`

	var pl domain.Player
	err := p.db.QueryRow(ctx, stmt, nickname).Scan(&pl.ID, &pl.Nickname)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("player not found: nickname=%s", nickname))
	}
	if err != nil {
		return nil, unavailable("get player", err)
	}

	return &pl, nil
}

func unavailable(op string, err error) error {
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("catalog: %s failed", op),
		errors.WithCause(fmt.Errorf("%s: %w", op, err)))
}
