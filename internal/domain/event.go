package domain

const (
	EventNameNotificationRequested = "notification.requested"
	EventNameScoreUpdated          = "score.updated"
	EventNameLeaderboardUpdated    = "leaderboard.updated"
	EventNameGameEnded             = "game.ended"
)

// EventNotificationRequested asks the transport to deliver Message to exactly
// the listed recipients.
type EventNotificationRequested struct {
	Recipients []string
	Message    Message
}

func (EventNotificationRequested) Name() string { return EventNameNotificationRequested }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }

type EventGameEnded struct {
	Result Result
}

func (EventGameEnded) Name() string { return EventNameGameEnded }
