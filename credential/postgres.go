package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists credential records in an `auth` table, one row
// per account. Counter and lock mutations take a row-level lock
// (SELECT ... FOR UPDATE) inside a short transaction so that concurrent
// attempts against the same account serialize.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The handle is expected
// to use the pgx stdlib driver.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, email, password_hash, active, password_changed_at, failed_login_count, locked_until`

// GetByID loads a record by account id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM auth WHERE id = $1`
	return s.scanRecord(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail loads a record by exact email match.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM auth WHERE email = $1`
	return s.scanRecord(s.db.QueryRowContext(ctx, query, email))
}

// Create inserts a new record. A unique-violation on the email column is
// reported as ErrDuplicateEmail.
func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	query := `INSERT INTO auth (id, email, password_hash, active, password_changed_at, failed_login_count, locked_until)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Email, rec.PasswordHash, rec.Active,
		nullableInt64(rec.PasswordChangedAt), rec.FailedLoginCount, nullableInt64(rec.LockedUntil),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.execExpectingRow(ctx, `DELETE FROM auth WHERE id = $1`, id)
}

// UpdateEmail changes the stored email.
func (s *PostgresStore) UpdateEmail(ctx context.Context, id, email string) error {
	query := `UPDATE auth SET email = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, email)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkAffected(res)
}

// UpdatePassword stores a new hash, stamps the change time, and resets
// the failure bookkeeping in one statement.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt int64) error {
	query := `UPDATE auth
	          SET password_hash = $2, password_changed_at = $3, failed_login_count = 0, locked_until = NULL
	          WHERE id = $1`
	return s.execExpectingRow(ctx, query, id, passwordHash, changedAt)
}

// RehashPassword replaces only the stored hash.
func (s *PostgresStore) RehashPassword(ctx context.Context, id, passwordHash string) error {
	return s.execExpectingRow(ctx, `UPDATE auth SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

// SetActive flips the activation flag.
func (s *PostgresStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.execExpectingRow(ctx, `UPDATE auth SET active = $2 WHERE id = $1`, id, active)
}

// ClearExpiredLock resets the counter and lock iff the lock has lapsed.
// The WHERE clause encodes the expected previous state, so the update is
// a no-op when another attempt already cleared it.
func (s *PostgresStore) ClearExpiredLock(ctx context.Context, id string, now int64) (bool, error) {
	query := `UPDATE auth
	          SET failed_login_count = 0, locked_until = NULL
	          WHERE id = $1 AND locked_until IS NOT NULL AND locked_until <= $2`
	res, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return affected > 0, nil
}

// RecordFailure counts one failed attempt under a row-level lock.
func (s *PostgresStore) RecordFailure(ctx context.Context, id string, now int64, threshold int, lockSeconds int64) (FailureOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	var (
		count  int
		locked sql.NullInt64
	)
	row := tx.QueryRowContext(ctx,
		`SELECT failed_login_count, locked_until FROM auth WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&count, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FailureOutcome{}, ErrNotFound
		}
		return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if locked.Valid && locked.Int64 > now {
		// Attempt during an active lock: nothing to count.
		if err := tx.Commit(); err != nil {
			return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return FailureOutcome{FailedLoginCount: count, LockedUntil: locked.Int64, AlreadyLocked: true}, nil
	}
	if locked.Valid {
		// Lapsed lock: the episode is over, restart the count.
		count = 0
		locked = sql.NullInt64{}
	}

	count++
	if count >= threshold {
		locked = sql.NullInt64{Int64: now + lockSeconds, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auth SET failed_login_count = $2, locked_until = $3 WHERE id = $1`,
		id, count, locked,
	); err != nil {
		return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return FailureOutcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := FailureOutcome{FailedLoginCount: count}
	if locked.Valid {
		out.LockedUntil = locked.Int64
	}
	return out, nil
}

// RecordSuccess resets the counter and lock.
func (s *PostgresStore) RecordSuccess(ctx context.Context, id string) error {
	query := `UPDATE auth SET failed_login_count = 0, locked_until = NULL WHERE id = $1`
	return s.execExpectingRow(ctx, query, id)
}

func (s *PostgresStore) execExpectingRow(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkAffected(res)
}

func (s *PostgresStore) scanRecord(row *sql.Row) (*Record, error) {
	var (
		rec       Record
		changedAt sql.NullInt64
		locked    sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Email, &rec.PasswordHash, &rec.Active, &changedAt, &rec.FailedLoginCount, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if changedAt.Valid {
		rec.PasswordChangedAt = &changedAt.Int64
	}
	if locked.Valid {
		rec.LockedUntil = &locked.Int64
	}
	return &rec, nil
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
