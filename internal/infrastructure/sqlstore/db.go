// Package sqlstore keeps user records in a relational table. PostgreSQL
// (through pgx) and SQLite are supported with the same schema and queries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sale-provisioner/internal/infrastructure/sqlstore/migrations"
	"github.com/go-sale-provisioner/internal/logger"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// Dialect describes how to talk to one database engine.
type Dialect struct {
	Name        string // value of STORE_BACKEND
	Driver      string // database/sql driver name
	Goose       string // goose dialect
	Placeholder sq.PlaceholderFormat
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Goose: "postgres", Placeholder: sq.Dollar}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite3", Goose: "sqlite3", Placeholder: sq.Question}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unknown sql dialect %q", name)
}

// Open connects to dsn and pings the database.
func Open(ctx context.Context, d Dialect, dsn string, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		log.Err(err).Str("driver", d.Driver).Msg("error occurred during database connection")
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}

	if d.Name == SQLite.Name {
		// SQLite allows a single writer; share one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(4)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Err(err).Str("driver", d.Driver).Msg("error connecting database (ping)")
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}
	log.Info().Str("driver", d.Driver).Msg("connected to database successfully")
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("migration error: db is nil")
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(d.Goose); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// transient reports whether err is a connection-level failure that an
// upstream retry could get past.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsTransactionRollback(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown ||
			pgErr.Code == pgerrcode.CannotConnectNow
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr) || errors.Is(err, sql.ErrConnDone)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
