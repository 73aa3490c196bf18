package persistence

import (
	"context"
	"os"
	"strings"
)

// NewFromEnv opens whichever backend is configured. DATABASE_URL takes
// priority over SCYLLA_URL when both are set, since it names the
// driver (pgx) this stack actually ships.
func NewFromEnv(ctx context.Context) (Store, error) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return OpenPostgres(ctx, dsn)
	}
	if path := strings.TrimSpace(os.Getenv("SCYLLA_URL")); path != "" {
		return OpenSQLite(sqlitePathFromScyllaURL(path))
	}
	return nil, ErrNoBackendConfigured
}

// sqlitePathFromScyllaURL maps a SCYLLA_URL value to a local SQLite
// file path. A bare value (no scheme) is used as-is; this keeps the
// original two-DSN shape usable without a real CQL cluster.
func sqlitePathFromScyllaURL(scyllaURL string) string {
	if path, ok := strings.CutPrefix(scyllaURL, "file://"); ok {
		return path
	}
	return scyllaURL
}
