package jackpot

import (
	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/rng"
)

const (
	DefaultAmount       = 1000
	DefaultPayoutChance = 10
)

type Config struct {
	// InitialAmount is the pool size at creation and after every payout.
	InitialAmount int
	// InitialPayoutChance is the per-round activation chance in percent. Zero
	// disables random activation.
	InitialPayoutChance int
	Rand                rng.Source
}

// Jackpot is a per-game bonus pool. It is not safe for concurrent use; the
// owning game serializes access.
type Jackpot struct {
	initialAmount int
	initialChance int
	rand          rng.Source

	amount        int
	active        bool
	payoutChance  int
	payoutCounter int
}

func New(c Config) *Jackpot {
	if c.InitialAmount <= 0 {
		c.InitialAmount = DefaultAmount
	}
	chance := max(0, min(c.InitialPayoutChance, 100))

	return &Jackpot{
		initialAmount: c.InitialAmount,
		initialChance: chance,
		rand:          c.Rand,
		amount:        c.InitialAmount,
		payoutChance:  chance,
	}
}

func (j *Jackpot) Amount() int        { return j.amount }
func (j *Jackpot) IsActive() bool     { return j.active }
func (j *Jackpot) PayoutChance() int  { return j.payoutChance }
func (j *Jackpot) PayoutCounter() int { return j.payoutCounter }
func (j *Jackpot) InitialAmount() int { return j.initialAmount }

func (j *Jackpot) SetActive(active bool) {
	j.active = active
}

func (j *Jackpot) State() domain.JackpotState {
	return domain.JackpotState{Amount: j.amount, IsActive: j.active}
}

// RandomActivation draws uniformly from [0, 100] and activates the jackpot
// when the draw reaches 100 - payout chance. A zero chance never activates,
// though the draw is still taken. An active jackpot stays active.
func (j *Jackpot) RandomActivation() bool {
	draw := rng.Between(j.rand, 0, 100)
	if j.payoutChance > 0 && draw >= 100-j.payoutChance {
		j.active = true
	}
	return j.active
}

// PayedOut empties the pool, refills it to the initial amount and resets the
// payout chance.
func (j *Jackpot) PayedOut() {
	j.clear()
	j.fill()
	j.payoutChance = j.initialChance
	j.payoutCounter++
}

// IncreasePayoutChance raises the activation chance, capped at 100 percent.
// The round loop never calls it.
func (j *Jackpot) IncreasePayoutChance(v int) {
	j.payoutChance = max(0, min(100, j.payoutChance+v))
}

func (j *Jackpot) AddPoints(points int) {
	j.amount += points
}

func (j *Jackpot) clear() {
	j.active = false
	j.amount = 0
}

func (j *Jackpot) fill() {
	j.amount = j.initialAmount
}
