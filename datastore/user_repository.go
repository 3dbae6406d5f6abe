package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, user models.User) (models.User, error)
	ValidateAndGetUser(ctx context.Context, credentials models.Credentials) (models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	// GrantCoins credits amount coins and logs entry in one transaction.
	GrantCoins(ctx context.Context, userID string, amount int, entry models.Activity) (models.User, error)
}

func NewUserDatabase(db *sql.DB) (UserDatabase, error) {
	var UserDatabase UserDatabase
	UserDatabase.database = db
	return UserDatabase, nil
}

type UserDatabase struct {
	database *sql.DB
}

const userColumns = `
		user_id,
		username,
		email,
		password_hash,
		kind,
		total_points,
		coins,
		total_solved,
		current_streak,
		last_active_date,
		current_xp,
		level,
		created_at,
		updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	scanErr := row.Scan(
		&user.UserID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&user.Kind,
		&user.TotalPoints,
		&user.Coins,
		&user.TotalSolved,
		&user.CurrentStreak,
		&user.LastActiveDate,
		&user.CurrentXP,
		&user.Level,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	switch scanErr {
	case sql.ErrNoRows:
		return models.User{}, NoRowsError{true, scanErr}
	case nil:
		return user, nil
	default:
		return models.User{}, scanErr
	}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q queryRower, where string, arg any) (models.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
}

func (pgdb UserDatabase) Create(ctx context.Context, user models.User) (models.User, error) {
	_, insertErr := pgdb.database.ExecContext(ctx, `
		INSERT INTO users (
			user_id,
			username,
			email,
			password_hash,
			kind,
			level,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.UserID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.Kind,
		user.Level,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if insertErr != nil {
		return models.User{}, fmt.Errorf("creating user: %w", translate(insertErr))
	}
	return user, nil
}

func (pgdb UserDatabase) Get(ctx context.Context, userID string) (models.User, error) {
	return getUser(ctx, pgdb.database, `user_id = $1`, userID)
}

func (pgdb UserDatabase) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return getUser(ctx, pgdb.database, `email = lower($1)`, email)
}

func (pgdb UserDatabase) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return getUser(ctx, pgdb.database, `username = $1`, username)
}

func (pgdb UserDatabase) GetAllUsers(ctx context.Context) ([]models.User, error) {
	rows, pgErr := pgdb.database.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if pgErr != nil {
		return nil, pgErr
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update writes the editable profile fields. Reward totals are left alone.
func (pgdb UserDatabase) Update(ctx context.Context, user models.User) (models.User, error) {
	row := pgdb.database.QueryRowContext(ctx, `
	UPDATE users
	SET
		username = $2,
		email = lower($3),
		updated_at = $4
	WHERE user_id = $1
	RETURNING `+userColumns,
		user.UserID,
		user.Username,
		user.Email,
		time.Now(),
	)
	updated, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("error updating user %w", translate(err))
	}
	return updated, nil
}

func (pgdb UserDatabase) ValidateAndGetUser(ctx context.Context, credentials models.Credentials) (models.User, error) {
	user, err := pgdb.GetUserByEmail(ctx, credentials.Email)
	if err != nil {
		return models.User{}, fmt.Errorf("error in row scan %w", err)
	}
	if !user.CheckPassword(credentials.Password) {
		return models.User{}, fmt.Errorf("error in compare of hash")
	}
	return user, nil
}

func (pgdb UserDatabase) GrantCoins(ctx context.Context, userID string, amount int, entry models.Activity) (models.User, error) {
	var user models.User
	err := withTx(ctx, pgdb.database, func(tx *sql.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRowContext(ctx, `
			UPDATE users SET coins = coins + $2, updated_at = NOW()
			WHERE user_id = $1
			RETURNING `+userColumns, userID, amount))
		if err != nil {
			return err
		}
		_, err = insertActivity(ctx, tx, entry)
		return err
	})
	if err != nil {
		return models.User{}, fmt.Errorf("granting coins: %w", err)
	}
	return user, nil
}

// insertActivity appends one activity row and returns it with its id.
func insertActivity(ctx context.Context, tx *sql.Tx, a models.Activity) (models.Activity, error) {
	meta := a.Metadata
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO activity_log (user_id, activity_type, challenge_id, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING activity_id, created_at`,
		a.UserID, a.Type, a.ChallengeID, []byte(meta),
	).Scan(&a.ActivityID, &a.CreatedAt)
	if err != nil {
		return models.Activity{}, fmt.Errorf("logging activity %s: %w", a.Type, err)
	}
	a.Metadata = meta
	return a, nil
}
