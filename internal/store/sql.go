package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type sqlStore struct {
	database *sql.DB
}

// newSQLStore serves both postgres (pgx) and sqlite3; the statements below
// are valid in both dialects.
func newSQLStore(driver string, dsn string) (Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// single writer
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS kv (" +
			" key VARCHAR (255) PRIMARY KEY," +
			" value TEXT NOT NULL," +
			" updated_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStore{
		database: db,
	}, nil
}

func (store *sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT value FROM kv"+
			" WHERE key = $1",
		key)
	var value string
	err := row.Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(value), nil
}

func (store *sqlStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO kv (key, value, updated_at)"+
			" VALUES ($1, $2, $3)"+
			" ON CONFLICT (key) DO UPDATE"+
			" SET value = excluded.value, updated_at = excluded.updated_at",
		key,
		string(value),
		time.Now().UTC())
	return err
}

func (store *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := store.database.ExecContext(ctx,
		"DELETE FROM kv"+
			" WHERE key = $1",
		key)
	return err
}

func (store *sqlStore) Close() error {
	return store.database.Close()
}
