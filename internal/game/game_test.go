package game_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/item"
	"github.com/victornm/quizarena/internal/protocol"
	"github.com/victornm/quizarena/internal/rng"
	"github.com/victornm/quizarena/internal/rng/rngtest"
)

type fixture struct {
	game     *game.Game
	notifier *recorder
	stores   *stores
	protocol *protocol.Protocol
}

func newGame(t *testing.T, ids []string, qs []domain.Question, opts ...func(c *game.Config)) fixture {
	t.Helper()

	f := fixture{
		notifier: &recorder{},
		stores:   &stores{},
		protocol: protocol.New(1),
	}
	for _, id := range ids {
		f.protocol.AddPlayer(id)
	}

	c := game.Config{
		ID:        0,
		RunID:     "run-1",
		Quiz:      domain.Quiz{QuizID: 1, MinParticipants: len(ids)},
		Players:   players(ids...),
		Questions: qs,
		Protocol:  f.protocol,
		Notifier:  f.notifier,
		Results:   f.stores,
		Ledger:    f.stores,
		Rand:      rngtest.New(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	f.game = game.New(c)
	return f
}

func answerAll(t *testing.T, g *game.Game, questionID string, ids ...string) {
	t.Helper()

	for i, id := range ids {
		advanced, err := g.AddWaitingPlayer(context.Background(), id, questionID, "")
		require.NoError(t, err)
		require.Equal(t, i == len(ids)-1, advanced, "only the last answer should advance the round")
	}
}

func TestGame_PlaysEveryRoundThenEnds(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a", "b"}, questions(3))
	g := f.game

	require.NoError(t, g.Start(ctx))

	msgs := f.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.GameStarted{GameID: 0}, msgs[0])
	q1 := msgs[1].(domain.QuestionStarted)
	assert.Equal(t, "q1", q1.Question.QuestionID)
	assert.False(t, q1.Jackpot.IsActive, "a zero draw never activates the jackpot")
	assert.Equal(t, domain.Scoreboard{"a": 0, "b": 0}, q1.Scoreboard)
	assert.Equal(t, 1, g.Snapshot().PlayedQuestions)

	answerAll(t, g, "q1", "a", "b")
	q2 := f.notifier.last().(domain.QuestionStarted)
	assert.Equal(t, "q2", q2.Question.QuestionID)
	assert.False(t, q2.Jackpot.IsActive)

	answerAll(t, g, "q2", "b", "a")
	q3 := f.notifier.last().(domain.QuestionStarted)
	assert.Equal(t, "q3", q3.Question.QuestionID)
	assert.True(t, q3.Jackpot.IsActive, "the final question always carries an active jackpot")
	assert.Equal(t, 1000, q3.Jackpot.Amount)

	answerAll(t, g, "q3", "a", "b")
	ended := f.notifier.last().(domain.GameEnded)
	assert.Equal(t, domain.Scoreboard{"a": 0, "b": 0}, ended.Scoreboard)

	snap := g.Snapshot()
	assert.Equal(t, game.StateEnded, snap.State)
	assert.Equal(t, 4, snap.PlayedQuestions)
	assert.Empty(t, snap.Waiting)

	for _, d := range f.notifier.sent {
		assert.Equal(t, []string{"a", "b"}, d.to, "messages only go to this game's players")
	}
}

func TestGame_StartNextQuestionCountsEveryCall(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a"}, questions(2))
	g := f.game

	require.Error(t, g.StartNextQuestion(ctx), "rounds cannot advance before start")
	require.NoError(t, g.Start(ctx))

	for want := 2; want <= 3; want++ {
		require.NoError(t, g.StartNextQuestion(ctx))
		assert.Equal(t, want, g.Snapshot().PlayedQuestions)
	}

	_, ended := g.EndedAt()
	require.True(t, ended)
	require.Len(t, f.stores.results, 1, "the game ends exactly once")

	err := g.StartNextQuestion(ctx)
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	assert.Equal(t, 3, g.Snapshot().PlayedQuestions, "rejected calls do not count")
	assert.Len(t, f.stores.results, 1)
}

func TestGame_EndPersistsResultsAndLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	f := newGame(t, []string{"a", "b"}, questions(1), func(c *game.Config) {
		c.ID = 7
		c.Now = func() time.Time { return now }
	})
	g := f.game

	require.NoError(t, g.Start(ctx))
	g.UpdateScoreboard("a", 30)
	answerAll(t, g, "q1", "a", "b")

	require.Len(t, f.stores.results, 1)
	assert.Equal(t, domain.Result{
		RunID:      "run-1",
		GameID:     7,
		QuizID:     1,
		Scoreboard: domain.Scoreboard{"a": 30, "b": 0},
		EndTime:    now,
	}, f.stores.results[0])

	ledger := f.stores.ledgers["run-1"]
	require.Len(t, ledger, 2)
	for _, id := range []string{"a", "b"} {
		v, ok := ledger[id].Get(protocol.GotScoreboard)
		require.True(t, ok)
		assert.Equal(t, true, v)

		v, _ = ledger[id].Get(protocol.JoinedGame)
		assert.Equal(t, 7, v)

		v, _ = ledger[id].Get(protocol.AnsweredQuestion)
		assert.Equal(t, "q1", v)
	}
}

func TestGame_AddWaitingPlayer(t *testing.T) {
	tests := map[string]struct {
		act      func(t *testing.T, g *game.Game)
		wantCode errors.Code
		wantWait []string
	}{
		"repeated answers count once": {
			act: func(t *testing.T, g *game.Game) {
				for i := 0; i < 3; i++ {
					advanced, err := g.AddWaitingPlayer(context.Background(), "a", "q1", "")
					require.NoError(t, err)
					require.False(t, advanced)
				}
			},
			wantWait: []string{"a"},
		},
		"non participants are rejected": {
			act: func(t *testing.T, g *game.Game) {
				_, err := g.AddWaitingPlayer(context.Background(), "mallory", "q1", "")
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
			},
			wantWait: []string{},
		},
		"a silent player holds the round open": {
			act: func(t *testing.T, g *game.Game) {
				answerAll(t, g, "q1", "a", "b", "c")
				for _, id := range []string{"a", "b"} {
					_, err := g.AddWaitingPlayer(context.Background(), id, "q2", "")
					require.NoError(t, err)
				}
			},
			wantWait: []string{"a", "b"},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f := newGame(t, []string{"a", "b", "c"}, questions(3))
			require.NoError(t, f.game.Start(context.Background()))

			tt.act(t, f.game)

			assert.Equal(t, tt.wantWait, f.game.Snapshot().Waiting)
		})
	}
}

func TestGame_AddWaitingPlayerAfterEnd(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a"}, questions(1))
	require.NoError(t, f.game.Start(ctx))
	answerAll(t, f.game, "q1", "a")

	_, err := f.game.AddWaitingPlayer(ctx, "a", "q1", "")
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestGame_UpdateScoreboard(t *testing.T) {
	f := newGame(t, []string{"a", "b"}, questions(2))

	total, ok := f.game.UpdateScoreboard("a", 15)
	assert.True(t, ok)
	assert.Equal(t, 15, total)

	total, ok = f.game.UpdateScoreboard("a", -5)
	assert.True(t, ok)
	assert.Equal(t, 10, total)

	_, ok = f.game.UpdateScoreboard("nobody", 100)
	assert.False(t, ok)
	assert.Equal(t, domain.Scoreboard{"a": 10, "b": 0}, f.game.Snapshot().Scoreboard)

	score, ok := f.game.Score("a")
	assert.True(t, ok)
	assert.Equal(t, 10, score)
	_, ok = f.game.Score("nobody")
	assert.False(t, ok)
}

func TestGame_ItemAssignmentAndCollection(t *testing.T) {
	ctx := context.Background()
	qs := questions(2)
	f := newGame(t, []string{"a", "b"}, qs, func(c *game.Config) {
		// jackpot draw, item chance, answer index (1 + 1), a's effect, b's effect
		c.Rand = rngtest.New(0, 0, 1, 0, 4)
		c.ItemProbability = 100
		c.Items = item.NewAssigner(item.AssignerConfig{
			Deviation: decimal.RequireFromString("0.4"),
			Rand:      c.Rand,
		})
	})
	g := f.game

	require.NoError(t, g.Start(ctx))

	q1 := f.notifier.last().(domain.QuestionStarted).Question
	assert.Nil(t, q1.Answers[0].AssignedEffects, "the first answer never carries an item")
	assert.Nil(t, q1.Answers[1].AssignedEffects)
	assert.Equal(t, map[string]string{"a": item.ScoreX2, "b": item.Bomb}, q1.Answers[2].AssignedEffects)
	assert.Nil(t, qs[0].Answers[2].AssignedEffects, "catalog questions are not modified")

	_, err := g.AddWaitingPlayer(ctx, "a", "q1", "q1-c")
	require.NoError(t, err)
	_, err = g.AddWaitingPlayer(ctx, "b", "q1", "q1-a")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{item.ScoreX2: 1}, g.Inventory("a"))
	assert.Empty(t, g.Inventory("b"))

	assert.True(t, g.ActivateItem(item.ScoreX2, "a"))
	assert.False(t, g.ActivateItem(item.ScoreX2, "a"))
	assert.Empty(t, g.Inventory("a"), "exhausted entries are cleaned after activation")
}

func TestGame_ItemChanceMiss(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a"}, questions(2), func(c *game.Config) {
		// jackpot draw 0, item chance draw 50 -> 51 > 50
		c.Rand = rngtest.New(0, 50)
		c.ItemProbability = 50
	})

	require.NoError(t, f.game.Start(ctx))

	for _, a := range f.notifier.last().(domain.QuestionStarted).Question.Answers {
		assert.Nil(t, a.AssignedEffects)
	}
}

func TestGame_PayoutJackpot(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a", "b"}, questions(2))
	g := f.game
	require.NoError(t, g.Start(ctx))

	_, ok := g.PayoutJackpot("a")
	assert.False(t, ok, "inactive jackpot pays nothing")

	answerAll(t, g, "q1", "a", "b")
	require.True(t, g.Snapshot().Jackpot.IsActive)

	_, ok = g.PayoutJackpot("nobody")
	assert.False(t, ok)
	assert.True(t, g.Snapshot().Jackpot.IsActive, "a failed payout keeps the pool")

	amount, ok := g.PayoutJackpot("b")
	require.True(t, ok)
	assert.Equal(t, 1000, amount)

	snap := g.Snapshot()
	assert.Equal(t, 1000, snap.Scoreboard["b"])
	assert.Equal(t, domain.JackpotState{Amount: 1000, IsActive: false}, snap.Jackpot)
}

func TestGame_RandomJackpotActivation(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a"}, questions(3), func(c *game.Config) {
		c.Rand = rng.New(1)
		c.Jackpot.InitialPayoutChance = 100
	})

	require.NoError(t, f.game.Start(ctx))

	assert.True(t, f.notifier.last().(domain.QuestionStarted).Jackpot.IsActive)
}

func TestGame_StartTwice(t *testing.T) {
	ctx := context.Background()
	f := newGame(t, []string{"a"}, questions(1))

	require.NoError(t, f.game.Start(ctx))
	assert.True(t, errors.Is(f.game.Start(ctx), errors.CodeFailedPrecondition))
}

func TestGame_GrantItem(t *testing.T) {
	f := newGame(t, []string{"a"}, questions(1))

	assert.True(t, f.game.GrantItem(item.Bomb, "a"))
	assert.False(t, f.game.GrantItem("laser", "a"))
	assert.False(t, f.game.GrantItem(item.Bomb, "z"))
	assert.Equal(t, map[string]int{item.Bomb: 1}, f.game.Inventory("a"))
}
