package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

type AnalyticsRepository interface {
	Summary(ctx context.Context, now time.Time) (models.AnalyticsSummary, error)
}

type AnalyticsDatabase struct {
	database *sql.DB
}

func NewAnalyticsDatabase(db *sql.DB) (AnalyticsDatabase, error) {
	return AnalyticsDatabase{database: db}, nil
}

func (ad AnalyticsDatabase) Summary(ctx context.Context, now time.Time) (models.AnalyticsSummary, error) {
	var s models.AnalyticsSummary
	err := ad.database.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM challenges WHERE is_active = true),
			(SELECT COALESCE(SUM(attempts), 0) FROM submissions),
			(SELECT COUNT(*) FROM submissions WHERE status = 'completed'),
			(SELECT COALESCE(SUM(xp_earned), 0) FROM submissions),
			(SELECT COALESCE(SUM(coins_earned), 0) FROM submissions),
			(SELECT COUNT(*) FROM active_multipliers WHERE expires_at > $1)`, now,
	).Scan(
		&s.TotalUsers,
		&s.ActiveChallenges,
		&s.TotalSubmissions,
		&s.TotalCompletions,
		&s.TotalXPIssued,
		&s.TotalCoinsIssued,
		&s.ActiveMultipliers,
	)
	if err != nil {
		return models.AnalyticsSummary{}, fmt.Errorf("failed to load analytics: %w", err)
	}

	rows, err := ad.database.QueryContext(ctx, `
		SELECT challenge_id, title, solved_count
		FROM challenges
		ORDER BY solved_count DESC, title
		LIMIT 10`)
	if err != nil {
		return models.AnalyticsSummary{}, fmt.Errorf("failed to load top challenges: %w", err)
	}
	defer rows.Close()

	s.TopChallenges = []models.ChallengeStat{}
	for rows.Next() {
		var c models.ChallengeStat
		if err := rows.Scan(&c.ChallengeID, &c.Title, &c.SolvedCount); err != nil {
			return models.AnalyticsSummary{}, fmt.Errorf("failed to scan challenge stat: %w", err)
		}
		s.TopChallenges = append(s.TopChallenges, c)
	}
	return s, rows.Err()
}
