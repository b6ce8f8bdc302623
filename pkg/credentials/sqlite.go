package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

const (
	createCredentialsTable = `CREATE TABLE IF NOT EXISTS credentials (
	slot  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	selectCredentials = `SELECT slot, value FROM credentials`
	deleteCredentials = `DELETE FROM credentials`
	insertCredential  = `INSERT INTO credentials (slot, value) VALUES (?, ?)`
)

// SQLiteBackend persists slots as rows of a single-table SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCredentialsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating credentials table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Load reads every stored slot.
func (b *SQLiteBackend) Load() (Slots, error) {
	rows, err := b.db.Query(selectCredentials)
	if err != nil {
		return Slots{}, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	slots := Slots{}
	for rows.Next() {
		var slot, value string
		if err := rows.Scan(&slot, &value); err != nil {
			return Slots{}, fmt.Errorf("scanning credentials: %w", err)
		}
		switch slot {
		case SlotAccessToken:
			slots.AccessToken = value
		case SlotRefreshToken:
			slots.RefreshToken = value
		case SlotExpiresAt:
			slots.ExpiresAt = value
		}
	}
	if err := rows.Err(); err != nil {
		return Slots{}, fmt.Errorf("reading credentials: %w", err)
	}

	return slots, nil
}

// Store replaces all slots in one transaction.
func (b *SQLiteBackend) Store(slots Slots) error {
	tx, err := b.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("beginning credentials tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(deleteCredentials); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	for _, kv := range [][2]string{
		{SlotAccessToken, slots.AccessToken},
		{SlotRefreshToken, slots.RefreshToken},
		{SlotExpiresAt, slots.ExpiresAt},
	} {
		if kv[1] == "" {
			continue
		}
		if _, err := tx.Exec(insertCredential, kv[0], kv[1]); err != nil {
			return fmt.Errorf("inserting %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing credentials: %w", err)
	}
	return nil
}

// Clear deletes every slot.
func (b *SQLiteBackend) Clear() error {
	if _, err := b.db.Exec(deleteCredentials); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
