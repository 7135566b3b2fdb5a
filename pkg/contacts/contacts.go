// Package contacts implements the contact store collaborator on SQLite.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/veilmsg/veilbridge/pkg/ids"
)

// ErrNotFound is returned when a contact id matches nothing.
var ErrNotFound = errors.New("contact not found")

// Contact is one address-book entry.
type Contact struct {
	ID           string
	Label        string
	PublicKey    string
	OnionAddress string
	MailboxID    string
	Verified     bool
	CreatedAt    int64
}

// Map serializes the contact to its wire shape.
func (c Contact) Map() map[string]any {
	return map[string]any{
		"id":            c.ID,
		"label":         c.Label,
		"public_key":    c.PublicKey,
		"onion_address": c.OnionAddress,
		"mailbox_id":    c.MailboxID,
		"verified":      c.Verified,
		"created_at":    c.CreatedAt,
	}
}

// Store owns the SQLite contact database for a profile.
type Store struct {
	db   *sql.DB
	path string
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string {
	return s.path
}

// Open initializes a SQLite database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures pragmas and schema are configured.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = DELETE;",
		"PRAGMA synchronous = FULL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return s.applySchema(ctx)
}

func (s *Store) applySchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES ('schemaVersion','1');`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			public_key TEXT NOT NULL,
			onion_address TEXT NOT NULL DEFAULT '',
			mailbox_id TEXT NOT NULL DEFAULT '',
			verified INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_created ON contacts(created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Add inserts a new contact and returns it. Distinct calls always create
// distinct contacts, even for identical fields.
func (s *Store) Add(ctx context.Context, label, publicKey, onionAddress, mailboxID string) (Contact, error) {
	contact := Contact{
		ID:           ids.New(),
		Label:        label,
		PublicKey:    publicKey,
		OnionAddress: onionAddress,
		MailboxID:    mailboxID,
		CreatedAt:    time.Now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts(id, label, public_key, onion_address, mailbox_id, verified, created_at) VALUES(?,?,?,?,?,0,?)`,
		contact.ID, contact.Label, contact.PublicKey, contact.OnionAddress, contact.MailboxID, contact.CreatedAt)
	if err != nil {
		return Contact{}, err
	}
	return contact, nil
}

// Remove deletes a contact by id.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	return wrapRowsAffected(res, err)
}

// ListAll returns every contact in insertion order. ULIDs sort by creation
// time, which breaks ties within one millisecond.
func (s *Store) ListAll(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, public_key, onion_address, mailbox_id, verified, created_at
		FROM contacts
		ORDER BY created_at ASC, id ASC;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]Contact, 0)
	for rows.Next() {
		var (
			c        Contact
			verified int
		)
		if err := rows.Scan(&c.ID, &c.Label, &c.PublicKey, &c.OnionAddress, &c.MailboxID, &verified, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Verified = verified != 0
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

// Verify marks a contact as verified.
func (s *Store) Verify(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET verified = 1 WHERE id = ?`, id)
	return wrapRowsAffected(res, err)
}

func wrapRowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
