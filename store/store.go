// Package store defines the aggregate persistence interface. Each subsystem
// (user, application, audit) defines its own store interface. The composite
// Store composes them all. Backends: MongoDB and Memory.
package store

import (
	"context"

	"github.com/xraph/sentinel/application"
	"github.com/xraph/sentinel/audit"
	"github.com/xraph/sentinel/user"
)

// Store is the aggregate persistence interface. A single backend (mongo,
// memory) implements all of it.
type Store interface {
	user.Store
	application.Store
	audit.Store

	// InTransaction runs fn inside a single atomic unit of work. Every
	// write fn performs through tx commits together or not at all.
	// Backends surface commit conflicts as errors wrapping
	// errs.ErrTransient so callers can retry.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Migrate creates collections and indexes.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
