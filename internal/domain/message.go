package domain

const (
	MessageTypeLobby      = "lobby"
	MessageTypeGameStart  = "game_start"
	MessageTypeQuestion   = "question"
	MessageTypeScoreboard = "scoreboard"
)

// Message is an outbound message addressed to the participants of one lobby
// or game. The set of implementations is closed.
type Message interface {
	MessageType() string
	isMessage()
}

// LobbyState lists current lobby members in join order; Nicknames is
// index-aligned with Members.
type LobbyState struct {
	QuizID    int
	Members   []string
	Nicknames []string
}

type GameStarted struct {
	GameID int
}

type QuestionStarted struct {
	GameID     int
	Question   Question
	Jackpot    JackpotState
	Scoreboard Scoreboard
}

// GameEnded carries the final scoreboard.
type GameEnded struct {
	GameID     int
	Scoreboard Scoreboard
}

func (LobbyState) MessageType() string      { return MessageTypeLobby }
func (GameStarted) MessageType() string     { return MessageTypeGameStart }
func (QuestionStarted) MessageType() string { return MessageTypeQuestion }
func (GameEnded) MessageType() string       { return MessageTypeScoreboard }

func (LobbyState) isMessage()      {}
func (GameStarted) isMessage()     {}
func (QuestionStarted) isMessage() {}
func (GameEnded) isMessage()       {}
