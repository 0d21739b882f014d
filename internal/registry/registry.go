// Package registry keeps the identities that puzzles refer to.
//
// It is deliberately small: identities are stored so that puzzle inserters
// and solvers can be checked for existence, and so that deleting an identity
// can cascade into the puzzle store. Trust and scoring live elsewhere.
//
// Lock order: Registry, then each DeletionListener, then the persistence
// lock taken by store.Update. Nothing below the registry may call back into it.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/introstore/internal/clock"
	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/store"
)

// ErrNotFound is returned when an identity is not stored.
var ErrNotFound = errors.New("identity not found")

// DeletionListener is notified inside the transaction that deletes an
// identity. The registry locks the listener before opening the transaction
// and unlocks it after commit or rollback.
//
// OnIdentityDeletion must not commit; returning an error rolls back the
// whole deletion.
type DeletionListener interface {
	sync.Locker
	OnIdentityDeletion(ctx context.Context, tx *store.Tx, ident identity.Identity) error
}

// Registry stores identities.
type Registry struct {
	mu        sync.Mutex
	store     *store.Store
	clock     clock.Clock
	log       *slog.Logger
	listeners []DeletionListener
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used to stamp new identities.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// New creates a registry on st.
func New(st *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store: st,
		clock: clock.System{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lock acquires the registry lock.
func (r *Registry) Lock() { r.mu.Lock() }

// Unlock releases the registry lock.
func (r *Registry) Unlock() { r.mu.Unlock() }

// AddDeletionListener registers l for identity deletions. Listeners are
// locked and notified in registration order.
func (r *Registry) AddDeletionListener(l DeletionListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Put stores ident, replacing the nickname and own flag of an existing one.
func (r *Registry) Put(ctx context.Context, ident identity.Identity) error {
	if ident.ID == "" {
		return identity.ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.Update(ctx, func(tx *store.Tx) error {
		return tx.PutIdentity(ctx, ident, r.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	r.log.Debug("identity stored", "identity", ident.String(), "own", ident.Own)
	return nil
}

// Get loads the identity with id.
func (r *Registry) Get(ctx context.Context, id string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, err := r.store.Identity(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Identity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ident, err
}

// Exists reports whether an identity with id is stored.
func (r *Registry) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.IdentityExists(ctx, id)
}

// All returns every stored identity ordered by id.
func (r *Registry) All(ctx context.Context) ([]identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Identities(ctx)
}

// Delete removes the identity with id after every listener has removed the
// objects that reference it, all in one transaction.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, err := r.store.Identity(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	for _, l := range r.listeners {
		l.Lock()
		defer l.Unlock()
	}

	err = r.store.Update(ctx, func(tx *store.Tx) error {
		for _, l := range r.listeners {
			if err := l.OnIdentityDeletion(ctx, tx, ident); err != nil {
				return err
			}
		}
		existed, err := tx.DeleteIdentity(ctx, ident.ID)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete identity %s: %w", id, err)
	}

	r.log.Info("identity deleted", "identity", ident.String())
	return nil
}
