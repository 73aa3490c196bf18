// Package persistence implements the two storage ports the fleet
// needs: the chat log a room actor reads and writes, and the
// discovery registry's instance leases and term bindings. Two
// backends satisfy the same Store interface, selected at boot by
// whichever of DATABASE_URL / SCYLLA_URL is configured.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNoBackendConfigured is returned by NewFromEnv when neither
// DATABASE_URL nor SCYLLA_URL is set.
var ErrNoBackendConfigured = errors.New("persistence: neither DATABASE_URL nor SCYLLA_URL is set")

// Instance is a discovery-registered chatroom instance, as returned by
// the active-instance queries.
type Instance struct {
	InstanceID int32
	Address    string
}

// Store is the full persistence port: chat history for room actors,
// plus the instance-lease and term-binding tables discovery uses.
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertChat records one chat message for chatroomID.
	InsertChat(ctx context.Context, chatroomID int32, content string) error

	// ChatsSince returns chat content for chatroomID with a
	// timestamp at or after since, in delivery order.
	ChatsSince(ctx context.Context, chatroomID int32, since time.Time) ([]string, error)

	// UpsertInstance records a fresh registration: last_accessed is
	// set to now for the (region, address) row, minting it if absent.
	UpsertInstance(ctx context.Context, region, address string, instanceID int32) error

	// TouchInstance refreshes last_accessed for the row matching
	// (region, address, instanceID) if its existing lease has not
	// already expired. ok is false when no such live row exists.
	TouchInstance(ctx context.Context, region, address string, instanceID int32, leaseTTL time.Duration) (ok bool, err error)

	// ActiveInstances lists every instance in region whose lease has
	// not expired.
	ActiveInstances(ctx context.Context, region string, leaseTTL time.Duration) ([]Instance, error)

	// GetBinding returns the current term -> instance binding, if any,
	// without regard to whether the bound instance is still active.
	GetBinding(ctx context.Context, term string) (Instance, bool, error)

	// InsertBindingIfAbsent records term's binding, overwriting any
	// existing row. This is how a stale binding pointing at a dead
	// instance gets repointed at a freshly chosen live one. Races with
	// a concurrent write are tolerated: whichever write lands last
	// wins, per the discovery binding race design — no compare-and-set
	// is required.
	InsertBindingIfAbsent(ctx context.Context, term, address string, instanceID int32) error

	// ReapExpiredInstances deletes instance rows whose lease has
	// expired and returns how many were removed.
	ReapExpiredInstances(ctx context.Context, region string, leaseTTL time.Duration) (int64, error)

	Close() error
}
