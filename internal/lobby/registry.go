package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/protocol"
	"github.com/victornm/quizarena/internal/telemetry"
)

// Catalog supplies quizzes and their questions.
type Catalog interface {
	Quiz(ctx context.Context, quizID int) (*domain.Quiz, error)
	// RandomQuestions returns the quiz's questions in play order.
	RandomQuestions(ctx context.Context, quizID int) ([]domain.Question, error)
}

type GameStarter interface {
	Start(ctx context.Context, req game.StartRequest) (*game.Game, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipients []string, m domain.Message)
}

type Config struct {
	Catalog  Catalog
	Games    GameStarter
	Notifier Notifier
}

// Registry holds at most one open lobby per quiz. All lobby mutations happen
// under its lock.
type Registry struct {
	catalog  Catalog
	games    GameStarter
	notifier Notifier

	mu      sync.Mutex
	lobbies map[int]*Lobby
}

func NewRegistry(c Config) *Registry {
	return &Registry{
		catalog:  c.Catalog,
		games:    c.Games,
		notifier: c.Notifier,
		lobbies:  make(map[int]*Lobby),
	}
}

// JoinResult tells the caller where the player ended up: still waiting in
// the lobby, or in the game the join just started.
type JoinResult struct {
	QuizID  int
	LobbyID string
	Waiting int
	Game    *game.Game
}

// Join adds a player to the quiz's open lobby, opening one if needed. When
// the lobby reaches the quiz's threshold the game starts and the lobby is
// closed. If the game cannot be created the player is taken back out of the
// lobby and the error is returned.
func (r *Registry) Join(ctx context.Context, p domain.Player, quizID int) (*JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[quizID]
	if !ok {
		var err error
		if l, err = r.open(ctx, quizID); err != nil {
			return nil, err
		}
	}

	if l.contains(p.ID) {
		return &JoinResult{QuizID: quizID, LobbyID: l.id.String(), Waiting: len(l.players)}, nil
	}

	l.players = append(l.players, p)
	l.protocol.AddPlayer(p.ID)
	l.protocol.Put(ctx, p.ID, protocol.JoinedLobby, quizID)
	slog.InfoContext(ctx, "lobby: player joined", "quiz_id", quizID, "lobby_id", l.id, "player_id", p.ID, "players", len(l.players))

	if !l.full() {
		r.lobbies[quizID] = l
		r.broadcast(ctx, l)
		return &JoinResult{QuizID: quizID, LobbyID: l.id.String(), Waiting: len(l.players)}, nil
	}

	g, err := r.openGame(ctx, l)
	if err != nil {
		l.remove(p.ID)
		l.protocol.Remove(p.ID)
		if len(l.players) == 0 {
			r.close(quizID)
		} else {
			r.lobbies[quizID] = l
		}
		return nil, err
	}

	r.close(quizID)
	return &JoinResult{QuizID: quizID, LobbyID: l.id.String(), Game: g}, nil
}

func (r *Registry) open(ctx context.Context, quizID int) (*Lobby, error) {
	q, err := r.catalog.Quiz(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("open lobby: %w", err)
	}
	if q.MinParticipants < 1 {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("quiz %d has invalid min participants %d", quizID, q.MinParticipants))
	}

	l, err := newLobby(*q)
	if err != nil {
		return nil, errors.Internal(err)
	}

	telemetry.LobbiesCreated.Inc()
	slog.InfoContext(ctx, "lobby: opened", "quiz_id", quizID, "lobby_id", l.id, "min_participants", q.MinParticipants)
	return l, nil
}

func (r *Registry) openGame(ctx context.Context, l *Lobby) (*game.Game, error) {
	qs, err := r.catalog.RandomQuestions(ctx, l.quiz.QuizID)
	if err != nil {
		return nil, fmt.Errorf("open game: %w", err)
	}
	if len(qs) == 0 {
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("quiz %d has no questions", l.quiz.QuizID))
	}

	g, err := r.games.Start(ctx, game.StartRequest{
		Quiz:      l.quiz,
		Players:   l.players,
		Questions: qs,
		Protocol:  l.protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("open game: %w", err)
	}

	slog.InfoContext(ctx, "lobby: game opened", "quiz_id", l.quiz.QuizID, "lobby_id", l.id, "game_id", g.ID(), "players", len(l.players))
	return g, nil
}

// Leave removes a player from the quiz's lobby. An emptied lobby is closed;
// otherwise the remaining members are told the new membership.
func (r *Registry) Leave(ctx context.Context, playerID string, quizID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[quizID]
	if !ok || !l.remove(playerID) {
		return false
	}

	slog.InfoContext(ctx, "lobby: player left", "quiz_id", quizID, "lobby_id", l.id, "player_id", playerID)
	if len(l.players) == 0 {
		r.close(quizID)
		return true
	}

	r.broadcast(ctx, l)
	return true
}

func (r *Registry) Lobby(quizID int) (View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lobbies[quizID]
	if !ok {
		return View{}, false
	}
	return l.view(), true
}

func (r *Registry) close(quizID int) {
	if _, ok := r.lobbies[quizID]; !ok {
		return
	}
	delete(r.lobbies, quizID)
	telemetry.LobbiesOpen.Set(float64(len(r.lobbies)))
}

func (r *Registry) broadcast(ctx context.Context, l *Lobby) {
	telemetry.LobbiesOpen.Set(float64(len(r.lobbies)))
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, l.memberIDs(), l.state())
}
