// Package session is the engine's command surface: it resolves players,
// routes inbound commands to lobbies and games, and announces score changes.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/event"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/lobby"
	"github.com/victornm/quizarena/internal/protocol"
)

const DefaultQuizID = 1

type PlayerDirectory interface {
	Player(ctx context.Context, playerID string) (*domain.Player, error)
	PlayerByNickname(ctx context.Context, nickname string) (*domain.Player, error)
}

type Config struct {
	EventBus *event.Bus
	Lobbies  *lobby.Registry
	Games    *game.Registry
	Players  PlayerDirectory
	// DefaultQuizID is used by lobby commands that name no quiz.
	DefaultQuizID int
	Now           func() time.Time
}

type Service struct {
	eb          *event.Bus
	lobbies     *lobby.Registry
	games       *game.Registry
	players     PlayerDirectory
	defaultQuiz int
	now         func() time.Time
}

func NewService(c Config) *Service {
	if c.DefaultQuizID == 0 {
		c.DefaultQuizID = DefaultQuizID
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Service{
		eb:          c.EventBus,
		lobbies:     c.Lobbies,
		games:       c.Games,
		players:     c.Players,
		defaultQuiz: c.DefaultQuizID,
		now:         c.Now,
	}
}

// Reply is the loosely typed result of a command, ready for any wire codec.
type Reply map[string]any

// Handle executes a parsed command.
func (s *Service) Handle(ctx context.Context, c Command) (Reply, error) {
	switch c := c.(type) {
	case Login:
		p, err := s.Login(ctx, c)
		if err != nil {
			return nil, err
		}
		return Reply{"player_id": p.ID, "nickname": p.Nickname}, nil

	case JoinLobby:
		res, err := s.JoinLobby(ctx, c)
		if err != nil {
			return nil, err
		}
		r := Reply{"quiz_id": res.QuizID, "lobby_id": res.LobbyID, "waiting": res.Waiting}
		if res.Game != nil {
			r["game_id"] = res.Game.ID()
		}
		return r, nil

	case LeaveLobby:
		return Reply{"left": s.LeaveLobby(ctx, c)}, nil

	case AnsweredQuestion:
		advanced, err := s.AnswerQuestion(ctx, c)
		if err != nil {
			return nil, err
		}
		return Reply{"advanced": advanced}, nil

	case UpdateScore:
		total, ok, err := s.UpdateScore(ctx, c)
		if err != nil {
			return nil, err
		}
		return Reply{"applied": ok, "total": total}, nil

	case PayoutJackpot:
		amount, ok, err := s.PayoutJackpot(ctx, c)
		if err != nil {
			return nil, err
		}
		return Reply{"paid": ok, "amount": amount}, nil

	case ActivateItem:
		ok, err := s.ActivateItem(ctx, c)
		if err != nil {
			return nil, err
		}
		return Reply{"activated": ok}, nil
	}

	return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unsupported command %T", c))
}

func (s *Service) Login(ctx context.Context, c Login) (*domain.Player, error) {
	return s.players.PlayerByNickname(ctx, c.Nickname)
}

func (s *Service) JoinLobby(ctx context.Context, c JoinLobby) (*lobby.JoinResult, error) {
	p, err := s.players.Player(ctx, c.PlayerID)
	if err != nil {
		return nil, err
	}

	return s.lobbies.Join(ctx, *p, s.quizID(c.QuizID))
}

func (s *Service) LeaveLobby(ctx context.Context, c LeaveLobby) bool {
	return s.lobbies.Leave(ctx, c.PlayerID, s.quizID(c.QuizID))
}

// AnswerQuestion feeds the game's round barrier and reports whether the
// answer completed the round.
func (s *Service) AnswerQuestion(ctx context.Context, c AnsweredQuestion) (bool, error) {
	g, err := s.games.Get(*c.GameID)
	if err != nil {
		return false, err
	}

	return g.AddWaitingPlayer(ctx, c.PlayerID, c.QuestionID, c.AnswerID)
}

// UpdateScore applies a delta. Unknown players are a no-op reported as not
// applied.
func (s *Service) UpdateScore(ctx context.Context, c UpdateScore) (int, bool, error) {
	g, err := s.games.Get(*c.GameID)
	if err != nil {
		return 0, false, err
	}

	total, ok := g.UpdateScoreboard(c.PlayerID, c.Delta)
	if ok {
		s.publishScore(ctx, g, c.PlayerID, total)
	}
	return total, ok, nil
}

func (s *Service) PayoutJackpot(ctx context.Context, c PayoutJackpot) (int, bool, error) {
	g, err := s.games.Get(*c.GameID)
	if err != nil {
		return 0, false, err
	}

	amount, ok := g.PayoutJackpot(c.PlayerID)
	if !ok {
		return 0, false, nil
	}

	slog.InfoContext(ctx, "session: jackpot paid out", "game_id", g.ID(), "player_id", c.PlayerID, "amount", amount)
	if total, ok := g.Score(c.PlayerID); ok {
		s.publishScore(ctx, g, c.PlayerID, total)
	}
	return amount, true, nil
}

func (s *Service) ActivateItem(_ context.Context, c ActivateItem) (bool, error) {
	g, err := s.games.Get(*c.GameID)
	if err != nil {
		return false, err
	}

	return g.ActivateItem(c.Effect, c.PlayerID), nil
}

func (s *Service) Game(gameID int) (game.Snapshot, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return game.Snapshot{}, err
	}
	return g.Snapshot(), nil
}

// Inventory returns the effects a player holds in a game.
func (s *Service) Inventory(gameID int, playerID string) (map[string]int, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	return g.Inventory(playerID), nil
}

// Ledger returns the live status ledger of a game.
func (s *Service) Ledger(gameID int) (protocol.Snapshot, error) {
	g, err := s.games.Get(gameID)
	if err != nil {
		return nil, err
	}
	return g.Ledger(), nil
}

func (s *Service) Lobby(quizID int) (lobby.View, error) {
	v, ok := s.lobbies.Lobby(quizID)
	if !ok {
		return lobby.View{}, errors.New(errors.CodeNotFound, errors.WithMessagef("no open lobby: quiz=%d", quizID))
	}
	return v, nil
}

func (s *Service) quizID(id *int) int {
	if id == nil {
		return s.defaultQuiz
	}
	return *id
}

func (s *Service) publishScore(ctx context.Context, g *game.Game, playerID string, total int) {
	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.Score{
			RunID:      g.RunID(),
			GameID:     g.ID(),
			PlayerID:   playerID,
			TotalScore: total,
			UpdateTime: s.now(),
		},
	})
}
