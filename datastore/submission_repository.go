package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

type SubmissionRepository interface {
	// Settle serialises on (userID, challengeID), hands the locked state to
	// fn and commits the Settlement it returns. It returns the committed
	// settlement (activity ids filled in) and the updated profile.
	Settle(ctx context.Context, userID, challengeID string, fn models.SettleFunc) (models.Settlement, models.User, error)
	ListByUser(ctx context.Context, userID string) ([]models.Submission, error)
}

type SubmissionDatabase struct {
	database *sql.DB
}

func NewSubmissionDatabase(db *sql.DB) (SubmissionDatabase, error) {
	return SubmissionDatabase{database: db}, nil
}

const submissionColumns = `
		submission_id, user_id, challenge_id, code, status, tests_passed,
		tests_total, time_elapsed_seconds, hints_used, is_perfect_solve,
		attempts, xp_earned, coins_earned, completed_at, created_at, updated_at`

func scanSubmission(row rowScanner) (models.Submission, error) {
	var s models.Submission
	err := row.Scan(
		&s.SubmissionID,
		&s.UserID,
		&s.ChallengeID,
		&s.Code,
		&s.Status,
		&s.TestsPassed,
		&s.TestsTotal,
		&s.TimeElapsedSeconds,
		&s.HintsUsed,
		&s.IsPerfectSolve,
		&s.Attempts,
		&s.XPEarned,
		&s.CoinsEarned,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return models.Submission{}, NoRowsError{true, err}
	}
	return s, err
}

func (sd SubmissionDatabase) Settle(ctx context.Context, userID, challengeID string, fn models.SettleFunc) (models.Settlement, models.User, error) {
	var (
		settled models.Settlement
		profile models.User
	)
	err := withTx(ctx, sd.database, func(tx *sql.Tx) error {
		// Released on commit or rollback.
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, userID, challengeID); err != nil {
			return fmt.Errorf("locking submission: %w", err)
		}

		state, err := readSettleState(ctx, tx, userID, challengeID)
		if err != nil {
			return err
		}

		settled, err = fn(state)
		if err != nil {
			return err
		}

		settled.Submission, err = upsertSubmission(ctx, tx, settled.Submission)
		if err != nil {
			return err
		}
		if err := applyProfileDeltas(ctx, tx, userID, challengeID, settled); err != nil {
			return err
		}
		for i, a := range settled.Activities {
			if settled.Activities[i], err = insertActivity(ctx, tx, a); err != nil {
				return err
			}
		}

		profile, err = getUser(ctx, tx, `user_id = $1`, userID)
		return err
	})
	if err != nil {
		return models.Settlement{}, models.User{}, fmt.Errorf("settling submission: %w", err)
	}
	return settled, profile, nil
}

func readSettleState(ctx context.Context, tx *sql.Tx, userID, challengeID string) (models.SettleState, error) {
	state := models.SettleState{Prior: rewards.StatusNone}

	err := tx.QueryRowContext(ctx,
		`SELECT status FROM submissions WHERE user_id = $1 AND challenge_id = $2 FOR UPDATE`,
		userID, challengeID).Scan(&state.Prior)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.SettleState{}, fmt.Errorf("reading prior submission: %w", err)
	}

	state.Profile, err = getUser(ctx, tx, `user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return models.SettleState{}, fmt.Errorf("reading profile: %w", err)
	}

	state.Multipliers, err = listActiveMultipliers(ctx, tx, userID, time.Now())
	if err != nil {
		return models.SettleState{}, err
	}
	return state, nil
}

// upsertSubmission writes the (user, challenge) row. A completed row stays
// completed and keeps its first completion time.
func upsertSubmission(ctx context.Context, tx *sql.Tx, s models.Submission) (models.Submission, error) {
	if s.SubmissionID == "" {
		s.SubmissionID = uuid.New().String()
	}
	now := time.Now()
	var completedAt *time.Time
	if s.Status == rewards.StatusCompleted {
		completedAt = &now
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO submissions (
			submission_id, user_id, challenge_id, code, status, tests_passed,
			tests_total, time_elapsed_seconds, hints_used, is_perfect_solve,
			attempts, xp_earned, coins_earned, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12, $13, $14, $14)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET
			code = EXCLUDED.code,
			status = CASE WHEN submissions.status = 'completed' THEN submissions.status ELSE EXCLUDED.status END,
			tests_passed = EXCLUDED.tests_passed,
			tests_total = EXCLUDED.tests_total,
			time_elapsed_seconds = EXCLUDED.time_elapsed_seconds,
			hints_used = EXCLUDED.hints_used,
			is_perfect_solve = EXCLUDED.is_perfect_solve,
			attempts = submissions.attempts + 1,
			xp_earned = submissions.xp_earned + EXCLUDED.xp_earned,
			coins_earned = submissions.coins_earned + EXCLUDED.coins_earned,
			completed_at = COALESCE(submissions.completed_at, EXCLUDED.completed_at),
			updated_at = EXCLUDED.updated_at
		RETURNING `+submissionColumns,
		s.SubmissionID, s.UserID, s.ChallengeID, s.Code, string(s.Status), s.TestsPassed,
		s.TestsTotal, s.TimeElapsedSeconds, s.HintsUsed, s.IsPerfectSolve,
		s.XPEarned, s.CoinsEarned, completedAt, now,
	)
	saved, err := scanSubmission(row)
	if err != nil {
		return models.Submission{}, fmt.Errorf("upserting submission: %w", err)
	}
	return saved, nil
}

func applyProfileDeltas(ctx context.Context, tx *sql.Tx, userID, challengeID string, s models.Settlement) error {
	if s.PointsDelta != 0 || s.CoinsDelta != 0 || s.SolvedDelta != 0 {
		_, err := tx.ExecContext(ctx, `
			UPDATE users SET
				total_points = total_points + $2,
				coins = coins + $3,
				total_solved = total_solved + $4,
				updated_at = NOW()
			WHERE user_id = $1`,
			userID, s.PointsDelta, s.CoinsDelta, s.SolvedDelta)
		if err != nil {
			return fmt.Errorf("crediting profile: %w", err)
		}
	}
	if s.LevelXPDelta > 0 {
		if _, err := tx.ExecContext(ctx, `SELECT add_user_xp($1, $2)`, userID, s.LevelXPDelta); err != nil {
			return fmt.Errorf("adding level xp: %w", err)
		}
	}
	if s.SolvedDelta > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE challenges SET solved_count = solved_count + $2 WHERE challenge_id = $1`,
			challengeID, s.SolvedDelta); err != nil {
			return fmt.Errorf("incrementing solved count: %w", err)
		}
	}
	if s.TouchStreak {
		if _, err := tx.ExecContext(ctx, `SELECT touch_user_streak($1, CURRENT_DATE)`, userID); err != nil {
			return fmt.Errorf("updating streak: %w", err)
		}
	}
	return nil
}

func (sd SubmissionDatabase) ListByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	rows, err := sd.database.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE user_id = $1
		ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
