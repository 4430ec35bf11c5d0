package repository

import (
	"context"

	"monarcade/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type RaceRepository struct {
	db *pgxpool.Pool
}

func NewRaceRepository(db *pgxpool.Pool) *RaceRepository {
	return &RaceRepository{db: db}
}

// Create stores a settled race. game_id carries a unique index, so a
// double report of the same race fails instead of inflating stats.
func (r *RaceRepository) Create(ctx context.Context, rec *domain.RaceRecord) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO races (game_id, room_code, winner, players, stake_amount, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		rec.GameID,
		rec.RoomCode,
		rec.Winner,
		rec.Players,
		rec.StakeAmount,
		rec.TxHash,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// GetByWallet returns races the wallet took part in, newest first.
func (r *RaceRepository) GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.RaceRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, game_id, room_code, winner, players, stake_amount, COALESCE(tx_hash, ''), created_at
		 FROM races
		 WHERE $1 = ANY(players)
		 ORDER BY created_at DESC
		 LIMIT $2`,
		wallet, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.RaceRecord
	for rows.Next() {
		var rec domain.RaceRecord
		if err := rows.Scan(
			&rec.ID, &rec.GameID, &rec.RoomCode, &rec.Winner,
			&rec.Players, &rec.StakeAmount, &rec.TxHash, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &rec)
	}

	return result, rows.Err()
}

// LeaderboardEntry is one row of the winners table.
type LeaderboardEntry struct {
	Wallet string `json:"wallet"`
	Wins   int    `json:"wins"`
	Races  int    `json:"races"`
}

// Leaderboard ranks wallets by wins over the last month.
func (r *RaceRepository) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT
			p.wallet,
			COUNT(*) FILTER (WHERE ra.winner = p.wallet) as wins,
			COUNT(*) as races
		 FROM races ra, unnest(ra.players) as p(wallet)
		 WHERE ra.created_at >= now() - interval '1 month'
		 GROUP BY p.wallet
		 ORDER BY wins DESC, races DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Wallet, &e.Wins, &e.Races); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}

	return result, rows.Err()
}
