package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quizarena/internal/api"
	"github.com/victornm/quizarena/internal/catalog"
	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/event"
	"github.com/victornm/quizarena/internal/game"
	"github.com/victornm/quizarena/internal/item"
	"github.com/victornm/quizarena/internal/jackpot"
	"github.com/victornm/quizarena/internal/leaderboard"
	"github.com/victornm/quizarena/internal/ledger"
	"github.com/victornm/quizarena/internal/lobby"
	"github.com/victornm/quizarena/internal/rng"
	"github.com/victornm/quizarena/internal/score"
	"github.com/victornm/quizarena/internal/session"
	"github.com/victornm/quizarena/internal/telemetry"
)

const (
	CatalogPostgres = "postgres"
	CatalogStatic   = "static"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Pubsub      RedisConfig
		Leaderboard RedisConfig
		Ledger      RedisConfig
	}

	Postgres struct {
		Catalog PostgresConfig
		// Results is optional; without it end-of-game results are not stored.
		Results PostgresConfig
	}

	Catalog struct {
		// Source is "postgres" or "static". A static catalog is read from
		// Quizzes and Players below.
		Source           string
		QuestionsPerGame int
		Quizzes          []catalog.QuizData
		Players          []domain.Player
	}

	Events struct {
		// PoolSize bounds concurrent invocations per subscription.
		PoolSize       int
		HandlerTimeout time.Duration
	}

	Engine struct {
		// ItemProbability is the percent chance that a round carries an item.
		ItemProbability int
		// Deviation is the half-width of the rank window, as a decimal string.
		Deviation       string
		JackpotAmount   int
		JackpotChance   int
		MaxGames        int
		Retention       time.Duration
		JanitorInterval time.Duration
		DefaultQuizID   int
		// Seed fixes the random source. Zero draws a fresh seed.
		Seed int64
	}
}

// DefaultConfig returns the values used for every key the config file omits.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Catalog.Source = CatalogPostgres
	c.Engine.ItemProbability = 30
	c.Engine.Deviation = "0.2"
	c.Engine.JackpotAmount = jackpot.DefaultAmount
	c.Engine.JackpotChance = jackpot.DefaultPayoutChance
	c.Engine.MaxGames = game.DefaultMaxGames
	c.Engine.Retention = game.DefaultRetention
	c.Engine.JanitorInterval = time.Minute
	c.Engine.DefaultQuizID = session.DefaultQuizID
	return c
}

type Catalog interface {
	lobby.Catalog
	session.PlayerDirectory
}

type Server struct {
	c Config

	eb   *event.Bus
	rand rng.Source

	infra struct {
		redis struct {
			pubsub      redis.UniversalClient
			leaderboard redis.UniversalClient
			ledger      redis.UniversalClient
		}

		postgres struct {
			catalog *pgxpool.Pool
			results *pgxpool.Pool
		}
	}

	service struct {
		catalog     Catalog
		games       *game.Registry
		lobbies     *lobby.Registry
		session     *session.Service
		score       *score.Service
		leaderboard *leaderboard.Service
		ledger      *ledger.Store
	}

	http *http.Server
	grpc *grpc.Server

	stopJanitor context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.Events.PoolSize),
		event.WithTimeout(c.Events.HandlerTimeout),
	)

	seed := c.Engine.Seed
	if seed == 0 {
		var err error
		if seed, err = rng.NewSeed(); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}
	s.rand = rng.New(seed)
	slog.Info("server: random source seeded", "seed", seed)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, rc RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.ledger, err = connect("ledger", s.c.Redis.Ledger)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(pc PostgresConfig) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	if s.c.Catalog.Source == CatalogPostgres {
		s.infra.postgres.catalog, err = connect(s.c.Postgres.Catalog)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}

	if s.c.Postgres.Results.Addr != "" {
		s.infra.postgres.results, err = connect(s.c.Postgres.Results)
		if err != nil {
			return fmt.Errorf("results: %w", err)
		}
	}

	return nil
}

func (s *Server) initService() error {
	switch s.c.Catalog.Source {
	case CatalogPostgres:
		s.service.catalog = catalog.NewPostgres(catalog.PostgresConfig{
			DB:               s.infra.postgres.catalog,
			Rand:             s.rand,
			QuestionsPerGame: s.c.Catalog.QuestionsPerGame,
		})
	case CatalogStatic:
		s.service.catalog = catalog.NewStatic(catalog.StaticConfig{
			Quizzes:          s.c.Catalog.Quizzes,
			Players:          s.c.Catalog.Players,
			Rand:             s.rand,
			QuestionsPerGame: s.c.Catalog.QuestionsPerGame,
		})
	default:
		return fmt.Errorf("unknown catalog source %q", s.c.Catalog.Source)
	}

	deviation, err := decimal.NewFromString(s.c.Engine.Deviation)
	if err != nil {
		return fmt.Errorf("engine deviation: %w", err)
	}

	s.service.ledger = ledger.NewStore(ledger.Config{
		Redis:  s.infra.redis.ledger,
		Prefix: s.c.Redis.Ledger.Prefix,
	})

	var results game.ResultStore
	if s.infra.postgres.results != nil {
		s.service.score = score.NewService(score.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres.results,
		})
		results = s.service.score
	}

	notifier := session.NewNotifier(s.eb)

	s.service.games = game.NewRegistry(game.RegistryConfig{
		MaxGames:  s.c.Engine.MaxGames,
		Retention: s.c.Engine.Retention,
		Notifier:  notifier,
		Results:   results,
		Ledger:    s.service.ledger,
		Rand:      s.rand,
		Items: item.NewAssigner(item.AssignerConfig{
			Deviation: deviation,
			Rand:      s.rand,
		}),
		ItemProbability: s.c.Engine.ItemProbability,
		Jackpot: jackpot.Config{
			InitialAmount:       s.c.Engine.JackpotAmount,
			InitialPayoutChance: s.c.Engine.JackpotChance,
		},
	})

	s.service.lobbies = lobby.NewRegistry(lobby.Config{
		Catalog:  s.service.catalog,
		Games:    s.service.games,
		Notifier: notifier,
	})

	s.service.session = session.NewService(session.Config{
		EventBus:      s.eb,
		Lobbies:       s.service.lobbies,
		Games:         s.service.games,
		Players:       s.service.catalog,
		DefaultQuizID: s.c.Engine.DefaultQuizID,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	cfg := api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Leaderboard:  s.service.leaderboard,
		Ledger:       s.service.ledger,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}
	if s.service.score != nil {
		cfg.Results = s.service.score
	}
	api.New(cfg)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	janitorCtx, stop := context.WithCancel(context.Background())
	s.stopJanitor = stop
	go s.service.games.Run(janitorCtx, s.c.Engine.JanitorInterval)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.stopJanitor != nil {
		s.stopJanitor()
	}

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, db := range []*pgxpool.Pool{s.infra.postgres.catalog, s.infra.postgres.results} {
		if db != nil {
			db.Close()
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
