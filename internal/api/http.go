package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/quizarena/internal/domain"
	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/item"
	"github.com/victornm/quizarena/internal/leaderboard"
	"github.com/victornm/quizarena/internal/score"
)

func (a *API) registerRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")

	v1.GET("/lobbies/:quiz", a.getLobby)
	v1.GET("/games/:game", a.getGame)
	v1.GET("/games/:game/leaderboard", a.getGameLeaderboard)
	v1.GET("/games/:game/ledger", a.getGameLedger)
	v1.GET("/games/:game/players/:player/items", a.getInventory)

	v1.GET("/runs/:run/leaderboard", a.getRunLeaderboard)
	v1.GET("/runs/:run/ledger", a.getRunLedger)
	v1.GET("/runs/:run/results", a.getRunResults)
}

func (a *API) getLobby(c *gin.Context) {
	quizID, ok := intParam(c, "quiz")
	if !ok {
		return
	}

	v, err := a.ss.Lobby(quizID)
	if err != nil {
		abort(c, err)
		return
	}

	out := LobbyView{
		LobbyID:         v.LobbyID,
		QuizID:          v.QuizID,
		MinParticipants: v.MinParticipants,
		Players:         make([]Player, 0, len(v.Players)),
	}
	for _, p := range v.Players {
		out.Players = append(out.Players, Player{ID: p.ID, Nickname: p.Nickname})
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getGame(c *gin.Context) {
	gameID, ok := intParam(c, "game")
	if !ok {
		return
	}

	s, err := a.ss.Game(gameID)
	if err != nil {
		abort(c, err)
		return
	}

	out := GameView{
		GameID:            s.GameID,
		RunID:             s.RunID,
		QuizID:            s.QuizID,
		State:             s.State.String(),
		PlayedQuestions:   s.PlayedQuestions,
		TotalQuestions:    s.TotalQuestions,
		CurrentQuestionID: s.CurrentQuestionID,
		Players:           make([]Player, 0, len(s.Players)),
		Waiting:           s.Waiting,
		Scoreboard:        s.Scoreboard,
		Jackpot:           Jackpot{Amount: s.Jackpot.Amount, IsActive: s.Jackpot.IsActive},
	}
	for _, p := range s.Players {
		out.Players = append(out.Players, Player{ID: p.ID, Nickname: p.Nickname})
	}
	c.JSON(http.StatusOK, out)
}

// getGameLeaderboard ranks the live scoreboard of a game.
func (a *API) getGameLeaderboard(c *gin.Context) {
	gameID, ok := intParam(c, "game")
	if !ok {
		return
	}

	s, err := a.ss.Game(gameID)
	if err != nil {
		abort(c, err)
		return
	}

	l := domain.Leaderboard{RunID: s.RunID}
	for _, id := range item.Rank(s.Scoreboard) {
		l.Entries = append(l.Entries, domain.LeaderboardEntry{PlayerID: id, Score: s.Scoreboard[id]})
	}
	c.JSON(http.StatusOK, encodeLeaderboard(l))
}

func (a *API) getGameLedger(c *gin.Context) {
	gameID, ok := intParam(c, "game")
	if !ok {
		return
	}

	snap, err := a.ss.Ledger(gameID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *API) getInventory(c *gin.Context) {
	gameID, ok := intParam(c, "game")
	if !ok {
		return
	}

	inv, err := a.ss.Inventory(gameID, c.Param("player"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": c.Param("player"), "items": inv})
}

// getRunLeaderboard reads the Redis mirror, which outlives the game.
func (a *API) getRunLeaderboard(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{RunID: c.Param("run")})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, encodeLeaderboard(*l))
}

func (a *API) getRunLedger(c *gin.Context) {
	entries, err := a.ld.Load(c.Request.Context(), c.Param("run"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (a *API) getRunResults(c *gin.Context) {
	if a.rs == nil {
		abort(c, errors.New(errors.CodeUnavailable, errors.WithMessagef("result store not configured")))
		return
	}

	rows, err := a.rs.ListResults(c.Request.Context(), score.ListResultsRequest{RunID: c.Param("run")})
	if err != nil {
		abort(c, err)
		return
	}

	out := RunResults{RunID: c.Param("run"), Rows: make([]ResultRow, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, ResultRow{PlayerID: r.PlayerID, Score: r.Score, Rank: r.Rank})
	}
	c.JSON(http.StatusOK, out)
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid %s: %q", name, c.Param(name))))
		return 0, false
	}
	return v, true
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
