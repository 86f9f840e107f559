package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizarena"

var (
	LobbiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lobbies_created_total",
		Help:      "Number of lobbies opened.",
	})

	LobbiesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lobbies_open",
		Help:      "Number of lobbies currently waiting for players.",
	})

	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_started_total",
		Help:      "Number of games started.",
	})

	GamesEnded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_ended_total",
		Help:      "Number of games that reached the final scoreboard.",
	})

	GamesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "games_active",
		Help:      "Number of games currently running rounds.",
	})

	GamesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_evicted_total",
		Help:      "Number of ended games removed from the registry.",
	})

	JackpotActivations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jackpot_activations_total",
		Help:      "Number of rounds in which a jackpot became active.",
	})

	JackpotPayouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jackpot_payouts_total",
		Help:      "Number of jackpot payouts.",
	})

	ItemsAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_assigned_total",
		Help:      "Number of per-player effects placed on answers.",
	})

	ItemsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_activated_total",
		Help:      "Number of held effects consumed.",
	})
)

var RPCsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "rpcs_handled_total",
	Help:      "Number of gRPC calls completed, by method and status code.",
}, []string{"method", "code"})
