// Package lobby gathers players per quiz until the quiz's participant
// threshold is met, then hands them to a new game.
package lobby

import (
	"slices"

	"github.com/google/uuid"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/protocol"
)

// Lobby is a single-use waiting room. It exists only while it holds fewer
// players than the quiz requires.
type Lobby struct {
	id       uuid.UUID
	quiz     domain.Quiz
	players  []domain.Player
	protocol *protocol.Protocol
}

func newLobby(quiz domain.Quiz) (*Lobby, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	return &Lobby{
		id:       id,
		quiz:     quiz,
		protocol: protocol.New(quiz.QuizID),
	}, nil
}

func (l *Lobby) contains(playerID string) bool {
	return l.indexOf(playerID) >= 0
}

func (l *Lobby) indexOf(playerID string) int {
	return slices.IndexFunc(l.players, func(p domain.Player) bool { return p.ID == playerID })
}

func (l *Lobby) remove(playerID string) bool {
	i := l.indexOf(playerID)
	if i < 0 {
		return false
	}
	l.players = slices.Delete(l.players, i, i+1)
	return true
}

func (l *Lobby) full() bool {
	return len(l.players) >= l.quiz.MinParticipants
}

func (l *Lobby) memberIDs() []string {
	ids := make([]string, 0, len(l.players))
	for _, p := range l.players {
		ids = append(ids, p.ID)
	}
	return ids
}

func (l *Lobby) state() domain.LobbyState {
	s := domain.LobbyState{
		QuizID:    l.quiz.QuizID,
		Members:   make([]string, 0, len(l.players)),
		Nicknames: make([]string, 0, len(l.players)),
	}
	for _, p := range l.players {
		s.Members = append(s.Members, p.ID)
		s.Nicknames = append(s.Nicknames, p.Nickname)
	}
	return s
}

// View is a read-only copy of an open lobby.
type View struct {
	LobbyID         string
	QuizID          int
	MinParticipants int
	Players         []domain.Player
}

func (l *Lobby) view() View {
	return View{
		LobbyID:         l.id.String(),
		QuizID:          l.quiz.QuizID,
		MinParticipants: l.quiz.MinParticipants,
		Players:         slices.Clone(l.players),
	}
}
