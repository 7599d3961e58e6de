package membership

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coldbrewlabs/pairhub/internal/logger"
)

// SQLiteResolver is a Resolver backed by a SQLite table of network
// memberships. This is the durable store named as an external collaborator
// in §1; the core only ever calls it through the Resolver interface.
type SQLiteResolver struct {
	db *sql.DB
}

// OpenSQLiteResolver opens (and migrates) the membership database at path.
func OpenSQLiteResolver(path string) (*SQLiteResolver, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open membership database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping membership database: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS network_memberships (
			user_id    TEXT PRIMARY KEY,
			network_id TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create network_memberships table: %w", err)
	}
	return &SQLiteResolver{db: db}, nil
}

// Close closes the underlying database handle.
func (r *SQLiteResolver) Close() error {
	return r.db.Close()
}

// ActiveNetwork implements Resolver.
func (r *SQLiteResolver) ActiveNetwork(ctx context.Context, userID string) (string, bool) {
	var networkID string
	err := r.db.QueryRowContext(ctx, `SELECT network_id FROM network_memberships WHERE user_id = ?`, userID).Scan(&networkID)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Warnf("membership: lookup failed for user %s: %v", userID, err)
		}
		return "", false
	}
	if networkID == "" {
		return "", false
	}
	return networkID, true
}

// SetActiveNetwork upserts a user's active network. This is a test/admin
// convenience; in production the membership table is populated by whatever
// process issues invite codes, outside this server's scope.
func (r *SQLiteResolver) SetActiveNetwork(ctx context.Context, userID, networkID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO network_memberships (user_id, network_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET network_id = excluded.network_id
	`, userID, networkID)
	return err
}
