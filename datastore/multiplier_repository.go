package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

type MultiplierRepository interface {
	ListActive(ctx context.Context, userID string, now time.Time) ([]models.ActiveMultiplier, error)
	// Grant inserts m and logs entry in the same transaction.
	Grant(ctx context.Context, m models.ActiveMultiplier, entry models.Activity) (models.ActiveMultiplier, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type MultiplierDatabase struct {
	database *sql.DB
}

func NewMultiplierDatabase(db *sql.DB) (MultiplierDatabase, error) {
	return MultiplierDatabase{database: db}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listActiveMultipliers(ctx context.Context, q queryer, userID string, now time.Time) ([]models.ActiveMultiplier, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT multiplier_id, user_id, multiplier_type, value, source, expires_at, created_at
		FROM active_multipliers
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY expires_at`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list multipliers: %w", err)
	}
	defer rows.Close()

	ms := []models.ActiveMultiplier{}
	for rows.Next() {
		var m models.ActiveMultiplier
		if err := rows.Scan(&m.MultiplierID, &m.UserID, &m.Type, &m.Value, &m.Source, &m.ExpiresAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan multiplier: %w", err)
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

func insertMultiplier(ctx context.Context, tx *sql.Tx, m models.ActiveMultiplier) (models.ActiveMultiplier, error) {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO active_multipliers (user_id, multiplier_type, value, source, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING multiplier_id, created_at`,
		m.UserID, m.Type, m.Value, m.Source, m.ExpiresAt,
	).Scan(&m.MultiplierID, &m.CreatedAt)
	if err != nil {
		return models.ActiveMultiplier{}, fmt.Errorf("failed to insert multiplier: %w", err)
	}
	return m, nil
}

func (md MultiplierDatabase) ListActive(ctx context.Context, userID string, now time.Time) ([]models.ActiveMultiplier, error) {
	return listActiveMultipliers(ctx, md.database, userID, now)
}

func (md MultiplierDatabase) Grant(ctx context.Context, m models.ActiveMultiplier, entry models.Activity) (models.ActiveMultiplier, error) {
	var granted models.ActiveMultiplier
	err := withTx(ctx, md.database, func(tx *sql.Tx) error {
		var err error
		if granted, err = insertMultiplier(ctx, tx, m); err != nil {
			return err
		}
		_, err = insertActivity(ctx, tx, entry)
		return err
	})
	return granted, err
}

func (md MultiplierDatabase) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := md.database.ExecContext(ctx, `DELETE FROM active_multipliers WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge multipliers: %w", err)
	}
	return res.RowsAffected()
}
