package middleware

import (
	"net/http"
	"strings"

	"monarcade/internal/service"

	"github.com/gin-gonic/gin"
)

// WalletKey is the context key the JWT middleware stores the caller's
// wallet address under.
const WalletKey = "wallet"

// JWT authenticates requests with a Bearer token and exposes the wallet
// address to handlers.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		wallet, err := service.ParseJWT(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(WalletKey, wallet)
		c.Next()
	}
}

// Wallet returns the authenticated wallet for the request, if any.
func Wallet(c *gin.Context) (string, bool) {
	v, ok := c.Get(WalletKey)
	if !ok {
		return "", false
	}
	wallet, ok := v.(string)
	return wallet, ok && wallet != ""
}
