package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := NewUserRepo(db, Postgres)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"email", "secret_hash", "credits", "created_at", "updated_at", "last_access_at"})
}

func TestUpsert_Success(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email,secret_hash,credits,created_at,updated_at) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (email) DO UPDATE")).
		WithArgs("alice@example.com", "hash-1", 10, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, secret_hash, credits, created_at, updated_at, last_access_at FROM users WHERE email = $1")).
		WithArgs("alice@example.com").
		WillReturnRows(userRows().AddRow("alice@example.com", "hash-1", 10, fixedNow, fixedNow, nil))
	mock.ExpectCommit()

	rec, err := repo.Upsert(context.Background(), "alice@example.com", "hash-1", 10)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", rec.SecretHash)
	assert.Equal(t, 10, rec.Credits)
	assert.Nil(t, rec.LastAccessAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ExecFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure})
	mock.ExpectRollback()

	_, err := repo.Upsert(context.Background(), "alice@example.com", "hash-1", 10)
	assert.True(t, errors.Is(err, domain.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_BeginFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := repo.Upsert(context.Background(), "alice@example.com", "hash-1", 10)
	assert.True(t, errors.Is(err, domain.ErrStorage))
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "nobody@example.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGet_WithLastAccess(t *testing.T) {
	repo, mock := newMockRepo(t)
	seen := fixedNow.Add(time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(userRows().AddRow("alice@example.com", "h", 3, fixedNow, fixedNow, seen))

	rec, err := repo.Get(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec.LastAccessAt)
	assert.Equal(t, seen, *rec.LastAccessAt)
}

func TestExists(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1")).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM users WHERE email = $1")).
		WithArgs("bob@example.com").
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.Exists(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, secret_hash, credits FROM users ORDER BY email")).
		WillReturnRows(sqlmock.NewRows([]string{"email", "secret_hash", "credits"}).
			AddRow("a@example.com", "ha", 10).
			AddRow("b@example.com", "hb", 4))

	snap, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Snapshot{
		"a@example.com": {Secret: "ha", Credits: 10},
		"b@example.com": {Secret: "hb", Credits: 4},
	}, snap)
}

func TestPing_Failure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	repo := NewUserRepo(db, Postgres)
	assert.True(t, errors.Is(repo.Ping(context.Background()), domain.ErrStorage))
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
	assert.True(t, transient(&pgconn.PgError{Code: pgerrcode.SerializationFailure}))
	assert.False(t, transient(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.True(t, transient(sql.ErrConnDone))
	assert.False(t, transient(errors.New("syntax")))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.Driver)

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Driver)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestMigrate_NilDB(t *testing.T) {
	err := Migrate(context.Background(), nil, Postgres)
	assert.ErrorContains(t, err, "db is nil")
}

func TestMigrate_DBError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = Migrate(context.Background(), db, Postgres)
	assert.ErrorContains(t, err, "migration error")
}
