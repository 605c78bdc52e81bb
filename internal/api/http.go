package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/errors"
	"github.com/victornm/raboard/internal/leaderboard"
)

func (a *API) registerHTTP(r gin.IRouter) {
	g := r.Group("/api", cors)

	g.GET("/game-progress", a.handleGetLeaderboard)
	g.OPTIONS("/game-progress", preflight)

	g.GET("/ra-progress", a.handleGetUserProgress)
	g.OPTIONS("/ra-progress", preflight)
}

func cors(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	c.Next()
}

func preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// GET /api/game-progress?gameId=
func (a *API) handleGetLeaderboard(c *gin.Context) {
	s, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		GameID: c.Query("gameId"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(s))
}

// GET /api/ra-progress?username=&gameId=
func (a *API) handleGetUserProgress(c *gin.Context) {
	p, err := a.ls.GetUserProgress(c.Request.Context(), leaderboard.GetUserProgressRequest{
		GameID: c.Query("gameId"),
		Handle: domain.Handle(c.Query("username")),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserProgress(p))
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.HTTPStatusCode() >= http.StatusInternalServerError && !stderrors.Is(err, context.Canceled) {
		slog.ErrorContext(c.Request.Context(), "api: request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{
		Error: e.Message,
		Kind:  string(e.Kind),
	})
}
