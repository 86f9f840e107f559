// Package item assigns per-round bonus/penalty effects biased by scoreboard
// position and tracks the effects each player holds.
package item

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizarena/internal/rng"
)

const (
	ScoreX2        = "scoreX2"
	ScoreX5        = "scoreX5"
	ScoreHalf      = "score/2"
	ShuffleAnswers = "shuffle_question"
	Jackpot        = "jackpot"
	Bomb           = "bomb"
	MoveAnswers    = "move_answers"
	HideScoreboard = "hide_scoreboard"
	SafePoints     = "get_points_save"
)

// Effect is a catalog entry. Weight in [0, 1] is the effect's severity; low
// weights go to leaders, high weights to trailing players.
type Effect struct {
	Name   string
	Weight decimal.Decimal
}

type Catalog []Effect

func DefaultCatalog() Catalog {
	return Catalog{
		{Name: ScoreX2, Weight: decimal.RequireFromString("0.3")},
		{Name: ScoreX5, Weight: decimal.RequireFromString("0.7")},
		{Name: ScoreHalf, Weight: decimal.RequireFromString("0.5")},
		{Name: ShuffleAnswers, Weight: decimal.RequireFromString("0.8")},
		{Name: Jackpot, Weight: decimal.NewFromInt(1)},
		{Name: Bomb, Weight: decimal.RequireFromString("0.6")},
		{Name: MoveAnswers, Weight: decimal.RequireFromString("0.7")},
		{Name: HideScoreboard, Weight: decimal.RequireFromString("0.1")},
		{Name: SafePoints, Weight: decimal.RequireFromString("0.2")},
	}
}

func (c Catalog) Has(name string) bool {
	return slices.ContainsFunc(c, func(e Effect) bool { return e.Name == name })
}

type AssignerConfig struct {
	Catalog Catalog
	// Deviation is the half-width of each player's acceptance window on the
	// [0, 1] ranking axis.
	Deviation decimal.Decimal
	Rand      rng.Source
}

type Assigner struct {
	catalog   Catalog
	deviation decimal.Decimal
	rand      rng.Source
}

func NewAssigner(c AssignerConfig) *Assigner {
	if c.Catalog == nil {
		c.Catalog = DefaultCatalog()
	}

	return &Assigner{
		catalog:   c.Catalog,
		deviation: c.Deviation,
		rand:      c.Rand,
	}
}

func (a *Assigner) Catalog() Catalog {
	return a.catalog
}

// Window is the inclusive weight range eligible for the player at rank
// (0 = leader) among n players. The lower bound is clamped at 0, the upper
// bound is not.
type Window struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

func (w Window) Contains(weight decimal.Decimal) bool {
	return weight.GreaterThanOrEqual(w.Lower) && weight.LessThanOrEqual(w.Upper)
}

func (a *Assigner) Window(rank, n int) Window {
	position := decimal.NewFromInt(int64(rank)).Div(decimal.NewFromInt(int64(n)))

	return Window{
		Lower: decimal.Max(decimal.Zero, position.Sub(a.deviation)),
		Upper: position.Add(a.deviation),
	}
}

// Candidates returns the catalog effects inside w, in catalog order.
func (a *Assigner) Candidates(w Window) []Effect {
	var out []Effect
	for _, e := range a.catalog {
		if w.Contains(e.Weight) {
			out = append(out, e)
		}
	}
	return out
}

// GetEffect draws one effect per player from that player's window. Players
// whose window matches nothing are left out of the result.
func (a *Assigner) GetEffect(scoreboard map[string]int) map[string]string {
	ranking := Rank(scoreboard)
	out := make(map[string]string, len(ranking))

	for r, playerID := range ranking {
		candidates := a.Candidates(a.Window(r, len(ranking)))
		if len(candidates) == 0 {
			continue
		}
		out[playerID] = candidates[a.rand.IntN(len(candidates))].Name
	}

	return out
}

// Rank orders player IDs by score, highest first. Equal scores are ordered by
// player ID so the ranking does not depend on map iteration.
func Rank(scoreboard map[string]int) []string {
	ids := make([]string, 0, len(scoreboard))
	for id := range scoreboard {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(scoreboard[b], scoreboard[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	return ids
}
