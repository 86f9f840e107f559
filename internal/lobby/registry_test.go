package lobby_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/lobby"
	"github.com/victornm/quizarena/internal/protocol"
	"github.com/victornm/quizarena/internal/rng"
)

type catalog struct {
	quizzes   map[int]domain.Quiz
	questions map[int][]domain.Question
}

func (c *catalog) Quiz(_ context.Context, id int) (*domain.Quiz, error) {
	q, ok := c.quizzes[id]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: id=%d", id))
	}
	return &q, nil
}

func (c *catalog) RandomQuestions(_ context.Context, id int) ([]domain.Question, error) {
	return c.questions[id], nil
}

type recorder struct {
	mu   sync.Mutex
	sent []domain.Message
	to   [][]string
}

func (r *recorder) Notify(_ context.Context, to []string, m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, m)
	r.to = append(r.to, to)
}

func (r *recorder) lobbyStates() []domain.LobbyState {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.LobbyState
	for _, m := range r.sent {
		if s, ok := m.(domain.LobbyState); ok {
			out = append(out, s)
		}
	}
	return out
}

type failingStarter struct {
	err  error
	last *game.StartRequest
}

func (f *failingStarter) Start(_ context.Context, req game.StartRequest) (*game.Game, error) {
	f.last = &req
	return nil, f.err
}

func questions(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			QuestionID: fmt.Sprintf("q%d", i),
			Answers: []domain.Answer{
				{AnswerID: fmt.Sprintf("q%d-a", i)},
				{AnswerID: fmt.Sprintf("q%d-b", i)},
			},
		})
	}
	return out
}

func newCatalog(minParticipants int) *catalog {
	return &catalog{
		quizzes:   map[int]domain.Quiz{1: {QuizID: 1, Title: "capitals", MinParticipants: minParticipants}},
		questions: map[int][]domain.Question{1: questions(2)},
	}
}

func newRegistry(cat lobby.Catalog, n *recorder) (*lobby.Registry, *game.Registry) {
	games := game.NewRegistry(game.RegistryConfig{
		MaxGames: 4,
		Notifier: n,
		Rand:     rng.New(1),
	})
	return lobby.NewRegistry(lobby.Config{Catalog: cat, Games: games, Notifier: n}), games
}

func player(id string) domain.Player {
	return domain.Player{ID: id, Nickname: "nick-" + id}
}

func TestRegistry_Join_StartsGameAtThreshold(t *testing.T) {
	tests := map[string]struct {
		minParticipants int
	}{
		"single player quiz": {minParticipants: 1},
		"pair quiz":          {minParticipants: 2},
		"quartet quiz":       {minParticipants: 4},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			n := &recorder{}
			lobbies, games := newRegistry(newCatalog(tt.minParticipants), n)
			ctx := context.Background()

			for i := 1; i < tt.minParticipants; i++ {
				res, err := lobbies.Join(ctx, player(fmt.Sprintf("p%d", i)), 1)
				require.NoError(t, err)
				assert.Nil(t, res.Game)
				assert.Equal(t, i, res.Waiting)
				assert.Equal(t, 0, games.Len())
			}

			res, err := lobbies.Join(ctx, player("last"), 1)
			require.NoError(t, err)
			require.NotNil(t, res.Game)
			assert.Len(t, res.Game.PlayerIDs(), tt.minParticipants)
			assert.Equal(t, 1, games.Len())

			_, open := lobbies.Lobby(1)
			assert.False(t, open, "lobby must close once its game starts")
			assert.Len(t, n.lobbyStates(), tt.minParticipants-1)
		})
	}
}

func TestRegistry_Join_CarriesProtocolIntoGame(t *testing.T) {
	n := &recorder{}
	lobbies, _ := newRegistry(newCatalog(2), n)
	ctx := context.Background()

	_, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)
	res, err := lobbies.Join(ctx, player("b"), 1)
	require.NoError(t, err)

	ledger := res.Game.Ledger()
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, 1, value(ledger[id], protocol.JoinedLobby))
		assert.Equal(t, res.Game.ID(), value(ledger[id], protocol.JoinedGame))
		assert.Equal(t, "q1", value(ledger[id], protocol.GotQuestion))
	}
}

func value(r protocol.Record, c protocol.Checkpoint) any {
	v, _ := r.Get(c)
	return v
}

func TestRegistry_Join_DuplicateIsNoop(t *testing.T) {
	n := &recorder{}
	lobbies, games := newRegistry(newCatalog(2), n)
	ctx := context.Background()

	_, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)
	res, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)

	assert.Nil(t, res.Game)
	assert.Equal(t, 1, res.Waiting)
	assert.Equal(t, 0, games.Len())
	assert.Len(t, n.lobbyStates(), 1, "a repeated join must not broadcast")
}

func TestRegistry_Join_BroadcastsMembership(t *testing.T) {
	n := &recorder{}
	lobbies, _ := newRegistry(newCatalog(3), n)
	ctx := context.Background()

	_, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)
	_, err = lobbies.Join(ctx, player("b"), 1)
	require.NoError(t, err)

	states := n.lobbyStates()
	require.Len(t, states, 2)
	assert.Equal(t, domain.LobbyState{
		QuizID:    1,
		Members:   []string{"a", "b"},
		Nicknames: []string{"nick-a", "nick-b"},
	}, states[1])
	assert.Equal(t, []string{"a", "b"}, n.to[1])
}

func TestRegistry_Join_UnknownQuiz(t *testing.T) {
	lobbies, _ := newRegistry(newCatalog(2), &recorder{})

	_, err := lobbies.Join(context.Background(), player("a"), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, open := lobbies.Lobby(99)
	assert.False(t, open)
}

func TestRegistry_Join_RollsBackWhenGameCannotStart(t *testing.T) {
	n := &recorder{}
	starter := &failingStarter{err: errors.New(errors.CodeResourceExhausted)}
	lobbies := lobby.NewRegistry(lobby.Config{
		Catalog:  newCatalog(2),
		Games:    starter,
		Notifier: n,
	})
	ctx := context.Background()

	_, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)

	_, err = lobbies.Join(ctx, player("b"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeResourceExhausted))

	v, open := lobbies.Lobby(1)
	require.True(t, open)
	assert.Equal(t, []domain.Player{player("a")}, v.Players)

	require.NotNil(t, starter.last)
	assert.True(t, starter.last.Protocol.Has("a"))
	assert.False(t, starter.last.Protocol.Has("b"), "rolled back player leaves no ledger record")
	assert.NotContains(t, starter.last.Protocol.Snapshot(), "b")

	res, err := lobbies.Join(ctx, player("b"), 1)
	require.Error(t, err, "retrying hits the same failure")
	assert.Nil(t, res)
}

func TestRegistry_Join_QuizWithoutQuestions(t *testing.T) {
	cat := newCatalog(1)
	cat.questions = nil
	lobbies, games := newRegistry(cat, &recorder{})

	_, err := lobbies.Join(context.Background(), player("a"), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnavailable))
	assert.Equal(t, 0, games.Len())

	_, open := lobbies.Lobby(1)
	assert.False(t, open)
}

func TestRegistry_Leave(t *testing.T) {
	n := &recorder{}
	lobbies, _ := newRegistry(newCatalog(3), n)
	ctx := context.Background()

	_, err := lobbies.Join(ctx, player("a"), 1)
	require.NoError(t, err)
	_, err = lobbies.Join(ctx, player("b"), 1)
	require.NoError(t, err)

	assert.True(t, lobbies.Leave(ctx, "a", 1))
	assert.False(t, lobbies.Leave(ctx, "a", 1))

	states := n.lobbyStates()
	assert.Equal(t, []string{"b"}, states[len(states)-1].Members)

	assert.True(t, lobbies.Leave(ctx, "b", 1))
	_, open := lobbies.Lobby(1)
	assert.False(t, open, "an emptied lobby is closed")
}

func TestRegistry_Join_Concurrent(t *testing.T) {
	const joiners = 12
	lobbies, games := newRegistry(newCatalog(3), &recorder{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := lobbies.Join(ctx, player(fmt.Sprintf("p%d", i)), 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, joiners/3, games.Len())
	_, open := lobbies.Lobby(1)
	assert.False(t, open)
}
