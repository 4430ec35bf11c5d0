package handlers

import (
	"net/http"
	"strconv"

	"monarcade/internal/domain"
	"monarcade/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type recordRaceRequest struct {
	GameID      string   `json:"gameId" binding:"required"`
	RoomCode    string   `json:"roomCode" binding:"required"`
	Winner      string   `json:"winner" binding:"required"`
	Players     []string `json:"players" binding:"required"`
	StakeAmount string   `json:"stakeAmount" binding:"required"`
	TxHash      string   `json:"txHash"`
}

// RecordRace stores a settled race. Only the winner may report it; the
// wallet in the token has to match.
func (h *Handler) RecordRace(c *gin.Context) {
	wallet, ok := middleware.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req recordRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Winner != wallet {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the winner can record a race"})
		return
	}
	if len(req.Players) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "need at least 2 players"})
		return
	}

	rec := &domain.RaceRecord{
		GameID:      req.GameID,
		RoomCode:    req.RoomCode,
		Winner:      req.Winner,
		Players:     req.Players,
		StakeAmount: req.StakeAmount,
		TxHash:      req.TxHash,
	}
	if err := h.Races.Create(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "race already recorded"})
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// MyRaces returns the caller's race history.
func (h *Handler) MyRaces(c *gin.Context) {
	wallet, ok := middleware.Wallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	races, err := h.Races.GetByWallet(c.Request.Context(), wallet, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load races"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"races": races})
}

// Leaderboard returns the monthly winners table.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.Races.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
