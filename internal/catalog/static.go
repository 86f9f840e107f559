package catalog

import (
	"context"
	"sync"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/rng"
)

// QuizData is a quiz with its questions, as written in a config file.
type QuizData struct {
	QuizID          int
	Title           string
	MinParticipants int
	Questions       []QuestionData
}

type QuestionData struct {
	QuestionID string
	Text       string
	Answers    []AnswerData
}

type AnswerData struct {
	AnswerID string
	Text     string
}

type StaticConfig struct {
	Quizzes []QuizData
	Players []domain.Player
	// Rand shuffles question order per game. Nil keeps the configured order.
	Rand rng.Source
	// QuestionsPerGame cuts the question list when positive.
	QuestionsPerGame int
}

// Static is an in-memory catalog and player directory.
type Static struct {
	rand  rng.Source
	limit int

	mu        sync.RWMutex
	quizzes   map[int]domain.Quiz
	questions map[int][]domain.Question
	players   map[string]domain.Player
}

func NewStatic(c StaticConfig) *Static {
	s := &Static{
		rand:      c.Rand,
		limit:     c.QuestionsPerGame,
		quizzes:   make(map[int]domain.Quiz, len(c.Quizzes)),
		questions: make(map[int][]domain.Question, len(c.Quizzes)),
		players:   make(map[string]domain.Player, len(c.Players)),
	}

	for _, q := range c.Quizzes {
		s.AddQuiz(q)
	}
	for _, p := range c.Players {
		s.AddPlayer(p)
	}
	return s
}

func (s *Static) AddQuiz(q QuizData) {
	qs := make([]domain.Question, 0, len(q.Questions))
	for _, qd := range q.Questions {
		question := domain.Question{
			QuestionID:   qd.QuestionID,
			QuestionText: qd.Text,
			Answers:      make([]domain.Answer, 0, len(qd.Answers)),
		}
		for _, a := range qd.Answers {
			question.Answers = append(question.Answers, domain.Answer{AnswerID: a.AnswerID, AnswerText: a.Text})
		}
		qs = append(qs, question)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.quizzes[q.QuizID] = domain.Quiz{QuizID: q.QuizID, Title: q.Title, MinParticipants: q.MinParticipants}
	s.questions[q.QuizID] = qs
}

func (s *Static) AddPlayer(p domain.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players[p.ID] = p
}

func (s *Static) Quiz(_ context.Context, quizID int) (*domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quizzes[quizID]
	if !ok {
		return nil, errQuizNotFound(quizID)
	}
	return &q, nil
}

func (s *Static) RandomQuestions(_ context.Context, quizID int) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qs, ok := s.questions[quizID]
	if !ok {
		return nil, errQuizNotFound(quizID)
	}
	return pick(s.rand, qs, s.limit), nil
}

func (s *Static) Player(_ context.Context, playerID string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, errPlayerNotFound(playerID)
	}
	return &p, nil
}

func (s *Static) PlayerByNickname(_ context.Context, nickname string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.players {
		if p.Nickname == nickname {
			return &p, nil
		}
	}
	return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("player not found: nickname=%s", nickname))
}

func errQuizNotFound(quizID int) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: id=%d", quizID), errors.WithDetail("quiz_id", quizID))
}

func errPlayerNotFound(playerID string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("player not found: id=%s", playerID))
}
