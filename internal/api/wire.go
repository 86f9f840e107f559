package api

import (
	"github.com/victornm/quizarena/internal/domain"
)

// Messages published to player channels. Each carries a "type" field naming
// its variant.
type (
	LobbyMessage struct {
		Type      string   `json:"type"`
		QuizID    int      `json:"quiz_id"`
		Members   []string `json:"members"`
		Nicknames []string `json:"nicknames"`
	}

	GameStartMessage struct {
		Type   string `json:"type"`
		GameID int    `json:"game_id"`
	}

	QuestionMessage struct {
		Type       string         `json:"type"`
		GameID     int            `json:"game_id"`
		Question   Question       `json:"question"`
		Jackpot    Jackpot        `json:"jackpot"`
		Scoreboard map[string]int `json:"scoreboard"`
	}

	ScoreboardMessage struct {
		Type       string         `json:"type"`
		GameID     int            `json:"game_id"`
		Scoreboard map[string]int `json:"scoreboard"`
	}

	LeaderboardMessage struct {
		Type    string             `json:"type"`
		RunID   string             `json:"run_id"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	GameEndedMessage struct {
		Type       string         `json:"type"`
		RunID      string         `json:"run_id"`
		GameID     int            `json:"game_id"`
		QuizID     int            `json:"quiz_id"`
		Scoreboard map[string]int `json:"scoreboard"`
		EndTime    int64          `json:"end_time"`
	}
)

type (
	Question struct {
		ID      string   `json:"id"`
		Text    string   `json:"text"`
		Answers []Answer `json:"answers"`
	}

	Answer struct {
		ID              string            `json:"id"`
		Text            string            `json:"text"`
		AssignedEffects map[string]string `json:"assigned_effects,omitempty"`
	}

	Jackpot struct {
		Amount   int  `json:"amount"`
		IsActive bool `json:"is_active"`
	}

	LeaderboardEntry struct {
		PlayerID string `json:"player_id"`
		Score    int    `json:"score"`
	}

	Player struct {
		ID       string `json:"id"`
		Nickname string `json:"nickname"`
	}
)

// HTTP views.
type (
	LobbyView struct {
		LobbyID         string   `json:"lobby_id"`
		QuizID          int      `json:"quiz_id"`
		MinParticipants int      `json:"min_participants"`
		Players         []Player `json:"players"`
	}

	GameView struct {
		GameID            int            `json:"game_id"`
		RunID             string         `json:"run_id"`
		QuizID            int            `json:"quiz_id"`
		State             string         `json:"state"`
		PlayedQuestions   int            `json:"played_questions"`
		TotalQuestions    int            `json:"total_questions"`
		CurrentQuestionID string         `json:"current_question_id,omitempty"`
		Players           []Player       `json:"players"`
		Waiting           []string       `json:"waiting"`
		Scoreboard        map[string]int `json:"scoreboard"`
		Jackpot           Jackpot        `json:"jackpot"`
	}

	RunResults struct {
		RunID string      `json:"run_id"`
		Rows  []ResultRow `json:"rows"`
	}

	ResultRow struct {
		PlayerID string `json:"player_id"`
		Score    int    `json:"score"`
		Rank     int    `json:"rank"`
	}
)

func encodeMessage(m domain.Message) any {
	switch m := m.(type) {
	case domain.LobbyState:
		return LobbyMessage{
			Type:      m.MessageType(),
			QuizID:    m.QuizID,
			Members:   m.Members,
			Nicknames: m.Nicknames,
		}
	case domain.GameStarted:
		return GameStartMessage{Type: m.MessageType(), GameID: m.GameID}
	case domain.QuestionStarted:
		return QuestionMessage{
			Type:       m.MessageType(),
			GameID:     m.GameID,
			Question:   encodeQuestion(m.Question),
			Jackpot:    Jackpot{Amount: m.Jackpot.Amount, IsActive: m.Jackpot.IsActive},
			Scoreboard: m.Scoreboard,
		}
	case domain.GameEnded:
		return ScoreboardMessage{Type: m.MessageType(), GameID: m.GameID, Scoreboard: m.Scoreboard}
	}
	return nil
}

func encodeQuestion(q domain.Question) Question {
	out := Question{
		ID:      q.QuestionID,
		Text:    q.QuestionText,
		Answers: make([]Answer, 0, len(q.Answers)),
	}
	for _, a := range q.Answers {
		out.Answers = append(out.Answers, Answer{ID: a.AnswerID, Text: a.AnswerText, AssignedEffects: a.AssignedEffects})
	}
	return out
}

func encodeLeaderboard(l domain.Leaderboard) LeaderboardMessage {
	out := LeaderboardMessage{
		Type:    "leaderboard",
		RunID:   l.RunID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{PlayerID: e.PlayerID, Score: e.Score})
	}
	return out
}
