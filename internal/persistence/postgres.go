package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresMigrations mirrors sqliteMigrations for the Postgres
// dialect. Applied once at OpenPostgres time.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chat (
		chatroom_id INTEGER NOT NULL,
		ts          TIMESTAMPTZ NOT NULL,
		content     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_room_ts ON chat(chatroom_id, ts)`,
	`CREATE TABLE IF NOT EXISTS instance (
		region        TEXT NOT NULL,
		address       TEXT NOT NULL,
		instance_id   INTEGER NOT NULL,
		last_accessed TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (region, address)
	)`,
	`CREATE TABLE IF NOT EXISTS chatroom (
		term        TEXT PRIMARY KEY,
		address     TEXT NOT NULL,
		instance_id INTEGER NOT NULL
	)`,
}

// PostgresStore is the authoritative shared backend, selected by
// DATABASE_URL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Simple protocol: matches poolers (e.g. pgbouncer transaction
	// mode) that don't support server-side prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	for i, stmt := range postgresMigrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertChat(ctx context.Context, chatroomID int32, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat (chatroom_id, ts, content) VALUES ($1, $2, $3)`,
		chatroomID, time.Now(), content,
	)
	return err
}

func (s *PostgresStore) ChatsSince(ctx context.Context, chatroomID int32, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content FROM chat WHERE chatroom_id = $1 AND ts >= $2 ORDER BY ts ASC`,
		chatroomID, since,
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

func (s *PostgresStore) UpsertInstance(ctx context.Context, region, address string, instanceID int32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO instance (region, address, instance_id, last_accessed)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (region, address) DO UPDATE SET
		   instance_id = excluded.instance_id,
		   last_accessed = excluded.last_accessed`,
		region, address, instanceID, time.Now(),
	)
	return err
}

func (s *PostgresStore) TouchInstance(ctx context.Context, region, address string, instanceID int32, leaseTTL time.Duration) (bool, error) {
	now := time.Now()
	threshold := now.Add(-leaseTTL)

	var found int32
	err := s.pool.QueryRow(ctx,
		`SELECT instance_id FROM instance
		 WHERE region = $1 AND address = $2 AND instance_id = $3 AND last_accessed >= $4`,
		region, address, instanceID, threshold,
	).Scan(&found)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE instance SET last_accessed = $1 WHERE region = $2 AND address = $3`,
		now, region, address,
	); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) ActiveInstances(ctx context.Context, region string, leaseTTL time.Duration) ([]Instance, error) {
	threshold := time.Now().Add(-leaseTTL)
	rows, err := s.pool.Query(ctx,
		`SELECT instance_id, address FROM instance WHERE region = $1 AND last_accessed >= $2`,
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

func (s *PostgresStore) GetBinding(ctx context.Context, term string) (Instance, bool, error) {
	var inst Instance
	err := s.pool.QueryRow(ctx,
		`SELECT instance_id, address FROM chatroom WHERE term = $1`, term,
	).Scan(&inst.InstanceID, &inst.Address)
	if err == pgx.ErrNoRows {
		return Instance{}, false, nil
	}
	if err != nil {
		return Instance{}, false, err
	}
	return inst, true, nil
}

func (s *PostgresStore) InsertBindingIfAbsent(ctx context.Context, term, address string, instanceID int32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chatroom (term, address, instance_id) VALUES ($1, $2, $3)
		 ON CONFLICT (term) DO UPDATE SET
		   address = excluded.address,
		   instance_id = excluded.instance_id`,
		term, address, instanceID,
	)
	return err
}

func (s *PostgresStore) ReapExpiredInstances(ctx context.Context, region string, leaseTTL time.Duration) (int64, error) {
	threshold := time.Now().Add(-leaseTTL)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM instance WHERE region = $1 AND last_accessed < $2`,
		region, threshold,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
