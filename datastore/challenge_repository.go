package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

type ChallengeRepository interface {
	Create(ctx context.Context, challenge models.Challenge) (models.Challenge, error)
	Get(ctx context.Context, challengeID string) (models.Challenge, error)
	ListActive(ctx context.Context) ([]models.Challenge, error)
	Update(ctx context.Context, challenge models.Challenge) (models.Challenge, error)
	Deactivate(ctx context.Context, challengeID string) error
}

type ChallengeDatabase struct {
	database *sql.DB
}

func NewChallengeDatabase(db *sql.DB) (ChallengeDatabase, error) {
	return ChallengeDatabase{database: db}, nil
}

const challengeColumns = `
		challenge_id, title, description, category, rank, base_points,
		time_limit_seconds, starter_code, solved_count, is_active,
		created_at, updated_at`

func scanChallenge(row rowScanner) (models.Challenge, error) {
	var c models.Challenge
	err := row.Scan(
		&c.ChallengeID,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Rank,
		&c.BasePoints,
		&c.TimeLimitSeconds,
		&c.StarterCode,
		&c.SolvedCount,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Challenge{}, NoRowsError{true, err}
	}
	return c, err
}

func (cd ChallengeDatabase) Create(ctx context.Context, c models.Challenge) (models.Challenge, error) {
	row := cd.database.QueryRowContext(ctx, `
		INSERT INTO challenges (
			challenge_id, title, description, category, rank, base_points,
			time_limit_seconds, starter_code, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+challengeColumns,
		c.ChallengeID, c.Title, c.Description, c.Category, c.Rank, c.BasePoints,
		c.TimeLimitSeconds, c.StarterCode, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	created, err := scanChallenge(row)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("failed to create challenge: %w", translate(err))
	}
	return created, nil
}

func (cd ChallengeDatabase) Get(ctx context.Context, challengeID string) (models.Challenge, error) {
	c, err := scanChallenge(cd.database.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE challenge_id = $1`, challengeID))
	if err != nil {
		return models.Challenge{}, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (cd ChallengeDatabase) ListActive(ctx context.Context) ([]models.Challenge, error) {
	rows, err := cd.database.QueryContext(ctx, `
		SELECT `+challengeColumns+`
		FROM challenges
		WHERE is_active = true
		ORDER BY rank, base_points, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := []models.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func (cd ChallengeDatabase) Update(ctx context.Context, c models.Challenge) (models.Challenge, error) {
	row := cd.database.QueryRowContext(ctx, `
		UPDATE challenges SET
			title = $2, description = $3, category = $4, rank = $5,
			base_points = $6, time_limit_seconds = $7, starter_code = $8,
			updated_at = $9
		WHERE challenge_id = $1
		RETURNING `+challengeColumns,
		c.ChallengeID, c.Title, c.Description, c.Category, c.Rank,
		c.BasePoints, c.TimeLimitSeconds, c.StarterCode, c.UpdatedAt,
	)
	updated, err := scanChallenge(row)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("failed to update challenge: %w", err)
	}
	return updated, nil
}

// Deactivate hides a challenge. Submission history referencing it is kept.
func (cd ChallengeDatabase) Deactivate(ctx context.Context, challengeID string) error {
	res, err := cd.database.ExecContext(ctx,
		`UPDATE challenges SET is_active = false, updated_at = NOW() WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to deactivate challenge: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NoRowsError{true, sql.ErrNoRows}
	}
	return nil
}
