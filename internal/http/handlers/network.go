package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NetworkInfo proxies the chain gateway's network identity so clients can
// verify their wallet is on the right chain before staking.
func (h *Handler) NetworkInfo(c *gin.Context) {
	info, err := h.Chain.NetworkInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "chain gateway unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chainId": info.ChainID,
		"name":    info.Name,
	})
}
