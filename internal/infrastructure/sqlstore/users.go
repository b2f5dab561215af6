package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/go-sale-provisioner/internal/logger"
)

const usersTable = "users"

var userColumns = []string{"email", "secret_hash", "credits", "created_at", "updated_at", "last_access_at"}

// upsertSuffix turns the INSERT into a replace-in-place that keeps created_at.
const upsertSuffix = `ON CONFLICT (email) DO UPDATE SET
    secret_hash = excluded.secret_hash,
    credits = excluded.credits,
    updated_at = excluded.updated_at`

// UserRepo is the relational user store. The upsert and the read-back run in
// one transaction, and the primary key on email serializes concurrent writers.
type UserRepo struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

func NewUserRepo(db *sql.DB, d Dialect) *UserRepo {
	return &UserRepo{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(d.Placeholder),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *UserRepo) Upsert(ctx context.Context, email, secretHash string, credits int) (*domain.UserRecord, error) {
	now := r.now()
	insert, insertArgs, err := r.sb.Insert(usersTable).
		Columns("email", "secret_hash", "credits", "created_at", "updated_at").
		Values(email, secretHash, credits, now, now).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return nil, r.fail(ctx, "build upsert", err)
	}

	var rec *domain.UserRecord
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return err
		}
		var getErr error
		rec, getErr = r.get(ctx, tx, email)
		return getErr
	})
	if err != nil {
		return nil, r.fail(ctx, "upsert user", err)
	}
	return rec, nil
}

func (r *UserRepo) Get(ctx context.Context, email string) (*domain.UserRecord, error) {
	rec, err := r.get(ctx, r.db, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, r.fail(ctx, "get user", err)
	}
	return rec, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	query, args, err := r.sb.Select("1").From(usersTable).Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return false, r.fail(ctx, "build exists", err)
	}
	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.fail(ctx, "check user", err)
	}
	return true, nil
}

func (r *UserRepo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	query, args, err := r.sb.Select("email", "secret_hash", "credits").From(usersTable).OrderBy("email").ToSql()
	if err != nil {
		return nil, r.fail(ctx, "build snapshot", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.fail(ctx, "snapshot users", err)
	}
	defer rows.Close()

	snap := domain.Snapshot{}
	for rows.Next() {
		var email string
		var entry domain.SnapshotEntry
		if err := rows.Scan(&email, &entry.Secret, &entry.Credits); err != nil {
			return nil, r.fail(ctx, "scan snapshot", err)
		}
		snap[email] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(ctx, "snapshot users", err)
	}
	return snap, nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return r.fail(ctx, "ping", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *UserRepo) get(ctx context.Context, q queryRower, email string) (*domain.UserRecord, error) {
	query, args, err := r.sb.Select(userColumns...).From(usersTable).Where(sq.Eq{"email": email}).ToSql()
	if err != nil {
		return nil, err
	}
	var rec domain.UserRecord
	var lastAccess sql.NullTime
	err = q.QueryRowContext(ctx, query, args...).
		Scan(&rec.Email, &rec.SecretHash, &rec.Credits, &rec.CreatedAt, &rec.UpdatedAt, &lastAccess)
	if err != nil {
		return nil, err
	}
	if lastAccess.Valid {
		t := lastAccess.Time
		rec.LastAccessAt = &t
	}
	return &rec, nil
}

// fail logs err and wraps it as a storage error.
func (r *UserRepo) fail(ctx context.Context, op string, err error) error {
	logger.FromContext(ctx).Err(err).
		Str("op", op).
		Bool("transient", transient(err)).
		Msg("user store error")
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
