package config

import (
	"os"
	"strconv"

	"monarcade/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string
	RedisAddr   string
	RedisDB     int

	// Chain gateway
	ChainGatewayURL string
	ContractAddress string
	ChainID         int64

	// Room limits
	MinPlayers int
	MaxPlayers int

	// Relay tuning
	JoinRetries int
	LogLevel    string
	LogJSON     bool
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	gatewayURL := os.Getenv("CHAIN_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:4000"
	}

	contract := os.Getenv("CONTRACT_ADDRESS")
	if contract == "" {
		contract = "0x0dfFacfEB3B20a64A90EdD175494367c6Ce1e866"
	}

	chainID := int64(10143) // monad testnet
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			chainID = n
		}
	}

	minPlayers := 2
	if v := os.Getenv("MIN_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minPlayers = n
		}
	}

	maxPlayers := 10
	if v := os.Getenv("MAX_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= minPlayers {
			maxPlayers = n
		}
	}

	joinRetries := 5
	if v := os.Getenv("JOIN_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			joinRetries = n
		}
	}

	return &Config{
		AppPort:         port,
		DatabaseURL:     dbURL,
		JWTSecret:       jwtSecret,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisDB:         0,
		ChainGatewayURL: gatewayURL,
		ContractAddress: contract,
		ChainID:         chainID,
		MinPlayers:      minPlayers,
		MaxPlayers:      maxPlayers,
		JoinRetries:     joinRetries,
		LogLevel:        getDefault("LOG_LEVEL", "info"),
		LogJSON:         os.Getenv("LOG_JSON") == "true",
	}
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
