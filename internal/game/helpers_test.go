package game_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/protocol"
)

type delivery struct {
	to  []string
	msg domain.Message
}

type recorder struct {
	mu   sync.Mutex
	sent []delivery
}

func (r *recorder) Notify(_ context.Context, to []string, m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, delivery{to: to, msg: m})
}

func (r *recorder) messages() []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Message, 0, len(r.sent))
	for _, d := range r.sent {
		out = append(out, d.msg)
	}
	return out
}

func (r *recorder) last() domain.Message {
	msgs := r.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type stores struct {
	mu      sync.Mutex
	results []domain.Result
	ledgers map[string]protocol.Snapshot
}

func (s *stores) SaveResults(_ context.Context, r domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, r)
	return nil
}

func (s *stores) DumpLedger(_ context.Context, runID string, snap protocol.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledgers == nil {
		s.ledgers = make(map[string]protocol.Snapshot)
	}
	s.ledgers[runID] = snap
	return nil
}

func players(ids ...string) []domain.Player {
	out := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Player{ID: id, Nickname: "nick-" + id})
	}
	return out
}

func questions(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			QuestionID:   fmt.Sprintf("q%d", i),
			QuestionText: fmt.Sprintf("question %d", i),
			Answers: []domain.Answer{
				{AnswerID: fmt.Sprintf("q%d-a", i), AnswerText: "right"},
				{AnswerID: fmt.Sprintf("q%d-b", i), AnswerText: "wrong"},
				{AnswerID: fmt.Sprintf("q%d-c", i), AnswerText: "also wrong"},
			},
		})
	}
	return out
}
