package handlers

import (
	"net/http"
	"regexp"

	"monarcade/internal/service"

	"github.com/gin-gonic/gin"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type authRequest struct {
	Address string `json:"address" binding:"required"`
}

// Auth issues a session token for a wallet address. The address is what
// the peer signs results with, so everything downstream is keyed by it.
func (h *Handler) Auth(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address required"})
		return
	}
	if !addressPattern.MatchString(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed address"})
		return
	}

	token, err := service.GenerateJWT(req.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "address": req.Address})
}
