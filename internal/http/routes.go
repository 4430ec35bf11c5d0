package http

import (
	"os"
	"strconv"
	"time"

	"monarcade/internal/chain"
	"monarcade/internal/config"
	"monarcade/internal/http/handlers"
	"monarcade/internal/http/middleware"
	"monarcade/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// RegisterRoutes wires the API and the relay onto the router.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, chainSvc chain.Service, cfg *config.Config, version string) {
	h := handlers.NewHandler(db, chainSvc)
	healthHandler := handlers.NewHealthHandler(db, version)

	// read limits from env, with safe defaults
	apiRateLimit := 60
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateLimit = n
		}
	}
	apiRateWindow := time.Minute
	if v := os.Getenv("API_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateWindow = time.Duration(n) * time.Second
		}
	}

	authRateLimit := 5
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			authRateLimit = n
		}
	}

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(apiRateLimit, apiRateWindow))
	{
		v1.POST("/auth", middleware.RedisRateLimit(authRateLimit, time.Minute), h.Auth)
		v1.GET("/network-info", h.NetworkInfo)

		v1.POST("/races", middleware.JWT(), h.RecordRace)
		v1.GET("/me/races", middleware.JWT(), h.MyRaces)
		v1.GET("/leaderboard", h.Leaderboard)
	}

	// Relay for room traffic. The address registry rides on Redis when
	// available so room codes stay unique across relay instances.
	var registry ws.AddressRegistry = ws.NewMemoryRegistry()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		registry = ws.NewRedisRegistry(rdb)
	}
	hub := ws.NewHub(registry)
	r.GET("/ws", h.WS(hub))
}
