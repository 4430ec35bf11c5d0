package handlers

import (
	"monarcade/internal/chain"
	"monarcade/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Handler bundles the dependencies the API endpoints share.
type Handler struct {
	DB    *pgxpool.Pool
	Chain chain.Service
	Races *repository.RaceRepository
}

func NewHandler(db *pgxpool.Pool, chainSvc chain.Service) *Handler {
	return &Handler{
		DB:    db,
		Chain: chainSvc,
		Races: repository.NewRaceRepository(db),
	}
}
