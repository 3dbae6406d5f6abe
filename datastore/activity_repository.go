package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 200
)

type ActivityRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

type ActivityDatabase struct {
	database *sql.DB
}

func NewActivityDatabase(db *sql.DB) (ActivityDatabase, error) {
	return ActivityDatabase{database: db}, nil
}

// ListByUser returns the newest entries first.
func (ad ActivityDatabase) ListByUser(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	rows, err := ad.database.QueryContext(ctx, `
		SELECT activity_id, user_id, activity_type, challenge_id, metadata, created_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at DESC, activity_id DESC
		LIMIT $2`, userID, clampLimit(limit, DefaultActivityLimit, MaxActivityLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var meta []byte
		if err := rows.Scan(&a.ActivityID, &a.UserID, &a.Type, &a.ChallengeID, &meta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Metadata = json.RawMessage(meta)
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// clampLimit applies def to non-positive limits and caps at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
