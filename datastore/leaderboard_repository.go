package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

const (
	DefaultLeaderboardLimit = 100
	MaxLeaderboardLimit     = 500
)

type LeaderboardRepository interface {
	Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	UserRank(ctx context.Context, userID string) (int, error)
}

type LeaderboardDatabase struct {
	database *sql.DB
}

func NewLeaderboardDatabase(db *sql.DB) (LeaderboardDatabase, error) {
	return LeaderboardDatabase{database: db}, nil
}

// Top ranks every user by total points, then solved count, then seniority.
func (ld LeaderboardDatabase) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := ld.database.QueryContext(ctx, `
		SELECT
			ROW_NUMBER() OVER (ORDER BY total_points DESC, total_solved DESC, created_at ASC) AS rank,
			user_id,
			username,
			total_points,
			total_solved,
			level
		FROM users
		ORDER BY total_points DESC, total_solved DESC, created_at ASC
		LIMIT $1`, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.Username, &e.TotalPoints, &e.TotalSolved, &e.Level); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (ld LeaderboardDatabase) UserRank(ctx context.Context, userID string) (int, error) {
	var rank int
	err := ld.database.QueryRowContext(ctx, `
		SELECT rank FROM (
			SELECT user_id,
				ROW_NUMBER() OVER (ORDER BY total_points DESC, total_solved DESC, created_at ASC) AS rank
			FROM users
		) ranked
		WHERE user_id = $1`, userID).Scan(&rank)
	switch err {
	case sql.ErrNoRows:
		return 0, NoRowsError{true, err}
	case nil:
		return rank, nil
	default:
		return 0, fmt.Errorf("failed to get user rank: %w", err)
	}
}
