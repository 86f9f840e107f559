// Package game implements a running quiz session: the round state machine,
// the scoreboard and the barrier that advances a round once every player has
// answered.
package game

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/item"
	"github.com/victornm/quizarena/internal/jackpot"
	"github.com/victornm/quizarena/internal/protocol"
	"github.com/victornm/quizarena/internal/rng"
	"github.com/victornm/quizarena/internal/telemetry"
)

type State int

const (
	StateInit State = iota
	StateRound
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRound:
		return "round"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Notifier delivers outbound messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, m domain.Message)
}

// ResultStore persists end-of-game results.
type ResultStore interface {
	SaveResults(ctx context.Context, r domain.Result) error
}

// LedgerStore receives the status ledger dump when a game ends.
type LedgerStore interface {
	DumpLedger(ctx context.Context, runID string, s protocol.Snapshot) error
}

type Config struct {
	ID int
	// RunID identifies this game across id reuse, for persisted artifacts.
	RunID     string
	Quiz      domain.Quiz
	Players   []domain.Player
	Questions []domain.Question
	Protocol  *protocol.Protocol

	Notifier Notifier
	Results  ResultStore
	Ledger   LedgerStore
	Rand     rng.Source
	Items    *item.Assigner
	// ItemProbability is the percent chance that a round's question carries
	// an item on one of its answers.
	ItemProbability int
	Jackpot         jackpot.Config
	Now             func() time.Time
}

type Game struct {
	mu sync.Mutex

	id        int
	runID     string
	quiz      domain.Quiz
	players   []domain.Player
	playerIDs []string
	questions []domain.Question
	protocol  *protocol.Protocol
	jackpot   *jackpot.Jackpot
	items     *item.Table
	assigner  *item.Assigner

	notifier        Notifier
	results         ResultStore
	ledger          LedgerStore
	rand            rng.Source
	itemProbability int
	now             func() time.Time

	state      State
	scoreboard domain.Scoreboard
	played     int
	waiting    map[string]struct{}
	current    domain.Question
	endedAt    time.Time
}

func New(c Config) *Game {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Results == nil {
		c.Results = nopStore{}
	}
	if c.Ledger == nil {
		c.Ledger = nopStore{}
	}
	if c.Protocol == nil {
		c.Protocol = protocol.New(c.Quiz.QuizID)
	}
	if c.Rand == nil {
		c.Rand = rng.New(time.Now().UnixNano())
	}
	if c.Items == nil {
		c.Items = item.NewAssigner(item.AssignerConfig{Rand: c.Rand})
	}
	if c.Jackpot.Rand == nil {
		c.Jackpot.Rand = c.Rand
	}

	g := &Game{
		id:              c.ID,
		runID:           c.RunID,
		quiz:            c.Quiz,
		players:         slices.Clone(c.Players),
		questions:       c.Questions,
		protocol:        c.Protocol,
		jackpot:         jackpot.New(c.Jackpot),
		items:           item.NewTable(),
		assigner:        c.Items,
		notifier:        c.Notifier,
		results:         c.Results,
		ledger:          c.Ledger,
		rand:            c.Rand,
		itemProbability: c.ItemProbability,
		now:             c.Now,
		scoreboard:      make(domain.Scoreboard, len(c.Players)),
		waiting:         make(map[string]struct{}, len(c.Players)),
	}

	for _, p := range c.Players {
		g.playerIDs = append(g.playerIDs, p.ID)
		g.scoreboard[p.ID] = 0
		g.protocol.AddPlayer(p.ID)
	}

	return g
}

func (g *Game) ID() int       { return g.id }
func (g *Game) RunID() string { return g.runID }

// PlayerIDs returns the participants in lobby join order.
func (g *Game) PlayerIDs() []string {
	return slices.Clone(g.playerIDs)
}

// Start announces the game, stamps every player as joined and opens the
// first round.
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateInit {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game already started: id=%d", g.id), errors.WithDetail("game_id", g.id))
	}

	g.notify(ctx, domain.GameStarted{GameID: g.id})
	for _, id := range g.playerIDs {
		g.protocol.Put(ctx, id, protocol.JoinedGame, g.id)
	}

	g.state = StateRound
	telemetry.GamesStarted.Inc()
	telemetry.GamesActive.Inc()
	slog.InfoContext(ctx, "game: started",
		"game_id", g.id, "run_id", g.runID, "quiz_id", g.quiz.QuizID, "players", len(g.playerIDs))

	return g.startNextQuestion(ctx)
}

// StartNextQuestion opens the next round, or ends the game once every
// question has been played. Calls on an ended game are rejected.
func (g *Game) StartNextQuestion(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateInit {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game not started: id=%d", g.id), errors.WithDetail("game_id", g.id))
	}

	return g.startNextQuestion(ctx)
}

func (g *Game) startNextQuestion(ctx context.Context) error {
	if g.state == StateEnded {
		return errGameEnded(g.id)
	}

	total := len(g.questions)
	if g.played == total {
		g.end(ctx)
		g.played++
		return nil
	}

	wasActive := g.jackpot.IsActive()
	if g.played == total-1 {
		g.jackpot.SetActive(true)
	} else {
		g.jackpot.RandomActivation()
	}
	if !wasActive && g.jackpot.IsActive() {
		telemetry.JackpotActivations.Inc()
	}

	q := g.assignItemEventually(g.questions[g.played].Clone())
	g.current = q

	g.notify(ctx, domain.QuestionStarted{
		GameID:     g.id,
		Question:   q,
		Jackpot:    g.jackpot.State(),
		Scoreboard: g.scoreboard.Clone(),
	})
	for _, id := range g.playerIDs {
		g.protocol.Put(ctx, id, protocol.GotQuestion, q.QuestionID)
	}

	g.played++
	return nil
}

// assignItemEventually gives, with the configured probability, one randomly
// chosen answer other than the first a per-player effect map.
func (g *Game) assignItemEventually(q domain.Question) domain.Question {
	if rng.Between(g.rand, 1, 100) > g.itemProbability {
		return q
	}
	if len(q.Answers) < 2 {
		return q
	}

	i := rng.Between(g.rand, 1, len(q.Answers)-1)
	effects := g.assigner.GetEffect(g.scoreboard)
	q.Answers[i].AssignedEffects = effects
	telemetry.ItemsAssigned.Add(float64(len(effects)))

	return q
}

func (g *Game) end(ctx context.Context) {
	g.state = StateEnded
	g.endedAt = g.now()
	clear(g.waiting)

	res := domain.Result{
		RunID:      g.runID,
		GameID:     g.id,
		QuizID:     g.quiz.QuizID,
		Scoreboard: g.scoreboard.Clone(),
		EndTime:    g.endedAt,
	}
	if err := g.results.SaveResults(ctx, res); err != nil {
		slog.ErrorContext(ctx, "game: save end results failed", "game_id", g.id, "run_id", g.runID, "error", err)
	}

	g.notify(ctx, domain.GameEnded{GameID: g.id, Scoreboard: g.scoreboard.Clone()})
	for _, id := range g.playerIDs {
		g.protocol.Put(ctx, id, protocol.GotScoreboard, true)
	}

	if err := g.ledger.DumpLedger(ctx, g.runID, g.protocol.Snapshot()); err != nil {
		slog.ErrorContext(ctx, "game: dump ledger failed", "game_id", g.id, "run_id", g.runID, "error", err)
	}

	telemetry.GamesEnded.Inc()
	telemetry.GamesActive.Dec()
	slog.InfoContext(ctx, "game: ended", "game_id", g.id, "run_id", g.runID, "rounds", len(g.questions))
}

// AddWaitingPlayer records that a player answered the current round. When
// the last outstanding player answers, the round advances immediately.
// There is no timeout: a player who never answers holds the round open.
func (g *Game) AddWaitingPlayer(ctx context.Context, playerID, questionID, answerID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateInit:
		return false, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("game not started: id=%d", g.id), errors.WithDetail("game_id", g.id))
	case StateEnded:
		return false, errGameEnded(g.id)
	}

	if _, ok := g.scoreboard[playerID]; !ok {
		return false, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("player is not a participant: game=%d player=%s", g.id, playerID),
			errors.WithDetail("game_id", g.id),
			errors.WithDetail("player_id", playerID))
	}

	g.protocol.Put(ctx, playerID, protocol.AnsweredQuestion, questionID)

	if _, again := g.waiting[playerID]; !again && questionID == g.current.QuestionID {
		g.collectItem(playerID, answerID)
	}
	g.waiting[playerID] = struct{}{}

	if len(g.waiting) < len(g.playerIDs) {
		return false, nil
	}

	clear(g.waiting)
	return true, g.startNextQuestion(ctx)
}

func (g *Game) collectItem(playerID, answerID string) {
	if answerID == "" {
		return
	}

	for _, a := range g.current.Answers {
		if a.AnswerID != answerID {
			continue
		}
		if effect, ok := a.AssignedEffects[playerID]; ok {
			g.items.AddItem(effect, playerID)
		}
		return
	}
}

// UpdateScoreboard adds delta to a participant's score and returns the new
// total. Unknown players are ignored.
func (g *Game) UpdateScoreboard(playerID string, delta int) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.updateScoreboard(playerID, delta)
}

func (g *Game) updateScoreboard(playerID string, delta int) (int, bool) {
	score, ok := g.scoreboard[playerID]
	if !ok {
		return 0, false
	}

	score += delta
	g.scoreboard[playerID] = score
	return score, true
}

// Score returns a participant's current total.
func (g *Game) Score(playerID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	score, ok := g.scoreboard[playerID]
	return score, ok
}

// PayoutJackpot credits the active jackpot to a participant and resets the
// pool. It reports the amount paid, and false when nothing was paid.
func (g *Game) PayoutJackpot(playerID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateRound || !g.jackpot.IsActive() {
		return 0, false
	}

	amount := g.jackpot.Amount()
	if _, ok := g.updateScoreboard(playerID, amount); !ok {
		return 0, false
	}

	g.jackpot.PayedOut()
	telemetry.JackpotPayouts.Inc()
	return amount, true
}

// IncreasePayoutChance raises the jackpot's activation chance for later
// rounds.
func (g *Game) IncreasePayoutChance(v int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.jackpot.IncreasePayoutChance(v)
}

// ActivateItem consumes one held unit of effect.
func (g *Game) ActivateItem(effect, playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ok := g.items.CheckAndActivateItem(effect, playerID)
	g.items.Clean()
	if ok {
		telemetry.ItemsActivated.Inc()
	}
	return ok
}

// GrantItem adds an effect to a participant's inventory.
func (g *Game) GrantItem(effect, playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.scoreboard[playerID]; !ok || !g.assigner.Catalog().Has(effect) {
		return false
	}

	g.items.AddItem(effect, playerID)
	return true
}

func (g *Game) Inventory(playerID string) map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.items.Inventory(playerID)
}

// EndedAt reports when the game ended, and false while it is still running.
func (g *Game) EndedAt() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.endedAt, g.state == StateEnded
}

func (g *Game) Ledger() protocol.Snapshot {
	return g.protocol.Snapshot()
}

type Snapshot struct {
	GameID            int
	RunID             string
	QuizID            int
	State             State
	PlayedQuestions   int
	TotalQuestions    int
	CurrentQuestionID string
	Players           []domain.Player
	Waiting           []string
	Scoreboard        domain.Scoreboard
	Jackpot           domain.JackpotState
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	waiting := make([]string, 0, len(g.waiting))
	for id := range g.waiting {
		waiting = append(waiting, id)
	}
	slices.Sort(waiting)

	return Snapshot{
		GameID:            g.id,
		RunID:             g.runID,
		QuizID:            g.quiz.QuizID,
		State:             g.state,
		PlayedQuestions:   g.played,
		TotalQuestions:    len(g.questions),
		CurrentQuestionID: g.current.QuestionID,
		Players:           slices.Clone(g.players),
		Waiting:           waiting,
		Scoreboard:        g.scoreboard.Clone(),
		Jackpot:           g.jackpot.State(),
	}
}

func (g *Game) notify(ctx context.Context, m domain.Message) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(ctx, slices.Clone(g.playerIDs), m)
}

func errGameEnded(id int) error {
	return errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("game already ended: id=%d", id),
		errors.WithDetail("game_id", id))
}

type nopStore struct{}

func (nopStore) SaveResults(context.Context, domain.Result) error { return nil }
func (nopStore) DumpLedger(context.Context, string, protocol.Snapshot) error { return nil }
