package domain

import (
	"maps"
	"time"
)

// Player is a participant as resolved by the player directory.
type Player struct {
	ID       string
	Nickname string
}

// Quiz is the catalog entry a lobby forms around.
type Quiz struct {
	QuizID          int
	Title           string
	MinParticipants int
}

type Question struct {
	QuestionID   string
	QuestionText string
	Answers      []Answer
}

// Answer is one option of a question. AssignedEffects maps a player ID to the
// effect that player receives when choosing this answer in the current round.
type Answer struct {
	AnswerID        string
	AnswerText      string
	AssignedEffects map[string]string
}

// Clone returns a copy whose answers can be modified without touching q.
func (q Question) Clone() Question {
	c := q
	c.Answers = make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		c.Answers[i] = a
		c.Answers[i].AssignedEffects = maps.Clone(a.AssignedEffects)
	}
	return c
}

// Scoreboard maps a player ID to the accumulated score within one game.
type Scoreboard map[string]int

func (s Scoreboard) Clone() Scoreboard {
	return maps.Clone(s)
}

type JackpotState struct {
	Amount   int
	IsActive bool
}

// Score is a player's total within one game run.
type Score struct {
	RunID      string
	GameID     int
	PlayerID   string
	TotalScore int
	UpdateTime time.Time
}

// Leaderboard is the list of players and their scores within a game run,
// sorted by score in descending order.
type Leaderboard struct {
	RunID   string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	PlayerID string
	Score    int
}

// Result is the end-of-game record handed to the result store.
type Result struct {
	RunID      string
	GameID     int
	QuizID     int
	Scoreboard Scoreboard
	EndTime    time.Time
}
