package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteMigrations brings a fresh database up to schema. Append, never
// edit or reorder, to add a migration.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chat (
		chatroom_id INTEGER NOT NULL,
		ts          INTEGER NOT NULL,
		content     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_room_ts ON chat(chatroom_id, ts)`,
	`CREATE TABLE IF NOT EXISTS instance (
		region        TEXT NOT NULL,
		address       TEXT NOT NULL,
		instance_id   INTEGER NOT NULL,
		last_accessed INTEGER NOT NULL,
		PRIMARY KEY (region, address)
	)`,
	`CREATE TABLE IF NOT EXISTS chatroom (
		term        TEXT PRIMARY KEY,
		address     TEXT NOT NULL,
		instance_id INTEGER NOT NULL
	)`,
}

// SQLiteStore is a pure-Go embedded stand-in for the ScyllaDB backend
// the original system used; honored via the SCYLLA_URL knob since no
// CQL driver exists in this stack. path may be ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	for i, stmt := range sqliteMigrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) InsertChat(ctx context.Context, chatroomID int32, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat (chatroom_id, ts, content) VALUES (?, ?, ?)`,
		chatroomID, time.Now().UnixMilli(), content,
	)
	return err
}

func (s *SQLiteStore) ChatsSince(ctx context.Context, chatroomID int32, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM chat WHERE chatroom_id = ? AND ts >= ? ORDER BY ts ASC`,
		chatroomID, since.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertInstance(ctx context.Context, region, address string, instanceID int32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO instance (region, address, instance_id, last_accessed)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(region, address) DO UPDATE SET
		   instance_id = excluded.instance_id,
		   last_accessed = excluded.last_accessed`,
		region, address, instanceID, time.Now().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) TouchInstance(ctx context.Context, region, address string, instanceID int32, leaseTTL time.Duration) (bool, error) {
	now := time.Now()
	threshold := now.Add(-leaseTTL).UnixMilli()

	var found int32
	err := s.db.QueryRowContext(ctx,
		`SELECT instance_id FROM instance
		 WHERE region = ? AND address = ? AND instance_id = ? AND last_accessed >= ?`,
		region, address, instanceID, threshold,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE instance SET last_accessed = ? WHERE region = ? AND address = ?`,
		now.UnixMilli(), region, address,
	); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) ActiveInstances(ctx context.Context, region string, leaseTTL time.Duration) ([]Instance, error) {
	threshold := time.Now().Add(-leaseTTL).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT instance_id, address FROM instance WHERE region = ? AND last_accessed >= ?`,
		region, threshold,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		var inst Instance
		if err := rows.Scan(&inst.InstanceID, &inst.Address); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetBinding(ctx context.Context, term string) (Instance, bool, error) {
	var inst Instance
	err := s.db.QueryRowContext(ctx,
		`SELECT instance_id, address FROM chatroom WHERE term = ?`, term,
	).Scan(&inst.InstanceID, &inst.Address)
	if err == sql.ErrNoRows {
		return Instance{}, false, nil
	}
	if err != nil {
		return Instance{}, false, err
	}
	return inst, true, nil
}

func (s *SQLiteStore) InsertBindingIfAbsent(ctx context.Context, term, address string, instanceID int32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chatroom (term, address, instance_id) VALUES (?, ?, ?)
		 ON CONFLICT(term) DO UPDATE SET
		   address = excluded.address,
		   instance_id = excluded.instance_id`,
		term, address, instanceID,
	)
	return err
}

func (s *SQLiteStore) ReapExpiredInstances(ctx context.Context, region string, leaseTTL time.Duration) (int64, error) {
	threshold := time.Now().Add(-leaseTTL).UnixMilli()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM instance WHERE region = ? AND last_accessed < ?`,
		region, threshold,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
