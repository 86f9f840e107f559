package api_test

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/victornm/quizarena/internal/api"
	"github.com/victornm/quizarena/internal/catalog"
	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/event"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/leaderboard"
	"github.com/victornm/quizarena/internal/ledger"
	"github.com/victornm/quizarena/internal/lobby"
	"github.com/victornm/quizarena/internal/rng/rngtest"
	"github.com/victornm/quizarena/internal/score"
	"github.com/victornm/quizarena/internal/session"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeResults struct {
	rows map[string][]score.Row
}

func (f fakeResults) ListResults(_ context.Context, req score.ListResultsRequest) ([]score.Row, error) {
	rows, ok := f.rows[req.RunID]
	if !ok {
		return nil, errNotFound(req.RunID)
	}
	return rows, nil
}

type stack struct {
	api     *api.API
	eb      *event.Bus
	games   *game.Registry
	session *session.Service
	ledger  *ledger.Store
	redis   redis.UniversalClient
	engine  *gin.Engine
	grpc    *grpc.Server
	lis     *bufconn.Listener
}

func newStack(t *testing.T) *stack {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	s := &stack{
		eb:     event.NewBus(),
		redis:  rc,
		engine: gin.New(),
		grpc:   grpc.NewServer(),
		lis:    bufconn.Listen(1 << 20),
	}

	cat := catalog.NewStatic(catalog.StaticConfig{
		Quizzes: []catalog.QuizData{{
			QuizID:          1,
			Title:           "capitals",
			MinParticipants: 2,
			Questions: []catalog.QuestionData{
				{QuestionID: "Q1", Text: "Capital of France?", Answers: []catalog.AnswerData{{AnswerID: "Q1-a", Text: "Paris"}, {AnswerID: "Q1-b", Text: "Lyon"}}},
				{QuestionID: "Q2", Text: "Capital of Peru?", Answers: []catalog.AnswerData{{AnswerID: "Q2-a", Text: "Lima"}, {AnswerID: "Q2-b", Text: "Cusco"}}},
			},
		}},
		Players: []domain.Player{{ID: "a", Nickname: "ada"}, {ID: "b", Nickname: "bob"}},
	})

	notifier := session.NewNotifier(s.eb)
	s.ledger = ledger.NewStore(ledger.Config{Redis: rc, Prefix: "quiz"})
	s.games = game.NewRegistry(game.RegistryConfig{
		MaxGames: 4,
		Notifier: notifier,
		Ledger:   s.ledger,
		Rand:     rngtest.New(),
	})
	s.session = session.NewService(session.Config{
		EventBus: s.eb,
		Lobbies:  lobby.NewRegistry(lobby.Config{Catalog: cat, Games: s.games, Notifier: notifier}),
		Games:    s.games,
		Players:  cat,
	})

	s.api = api.New(api.Config{
		GRPC:     s.grpc,
		HTTP:     s.engine,
		EventBus: s.eb,
		Session:  s.session,
		Leaderboard: leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Redis:    rc,
			Prefix:   "quiz",
		}),
		Ledger:       s.ledger,
		Results:      fakeResults{rows: map[string][]score.Row{"r1": {{PlayerID: "a", Score: 10, Rank: 1}}}},
		Redis:        rc,
		PubsubPrefix: "quiz",
	})

	go func() { _ = s.grpc.Serve(s.lis) }()
	t.Cleanup(func() {
		s.grpc.Stop()
		s.eb.Stop()
	})

	return s
}

func (s *stack) dial(t *testing.T) *grpc.ClientConn {
	t.Helper()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// subscribe returns a subscription that is confirmed before returning, so no
// message published afterwards is missed.
func (s *stack) subscribe(t *testing.T, channels ...string) *redis.PubSub {
	t.Helper()

	sub := s.redis.Subscribe(context.Background(), channels...)
	for range channels {
		_, err := sub.Receive(context.Background())
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func receive(t *testing.T, sub *redis.PubSub) *redis.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	return msg
}

func errNotFound(runID string) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef("results not found: run=%s", runID))
}
