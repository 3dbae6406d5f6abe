package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/lib/pq"
)

var (
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrOutOfStock        = errors.New("insufficient stock available")
	ErrItemUnavailable   = errors.New("item is not available")
	ErrNotOwner          = errors.New("inventory item belongs to another user")
	ErrDuplicate         = errors.New("record already exists")
)

// NoRowsError wraps sql.ErrNoRows for lookups that found nothing.
type NoRowsError struct {
	NoRows bool
	Err    error
}

func (nr NoRowsError) Error() string {
	return fmt.Sprintf("%v: no rows returned for scan: %v", nr.NoRows, nr.Err)
}

func (nr NoRowsError) Unwrap() error {
	return nr.Err
}

// IsNoRows reports whether err came from a lookup that found nothing.
func IsNoRows(err error) bool {
	var nr NoRowsError
	return errors.As(err, &nr) || errors.Is(err, sql.ErrNoRows)
}

// NewDB opens a pool and checks it with a ping.
func NewDB(ctx context.Context, dbtype string, connstr string) (*sql.DB, error) {
	db, openError := sql.Open(dbtype, connstr)
	if openError != nil {
		return nil, fmt.Errorf("error opening connection -> %w", openError)
	}

	if pingError := db.PingContext(ctx); pingError != nil {
		db.Close()
		return nil, fmt.Errorf("could not establish connection with database -> %w", pingError)
	}

	return db, nil
}

// BuildDBConnStr builds a PostgreSQL connection string
func BuildDBConnStr(host, password, user, dbname, sslmode string) string {
	if host == "" {
		host = "localhost"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     host,
		Path:     dbname,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// withTx runs fn inside a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto the package's sentinel errors.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
