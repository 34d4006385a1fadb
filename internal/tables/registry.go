// Package tables owns table records, their occupancy state and check-in
// tokens.
package tables

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrTableNotFound = errors.New("table not found")

// Store is the persistence port for tables. TableByID and TableByNumber lock
// the returned row until the transaction ends; TableByToken does not.
type Store interface {
	TableByID(ctx context.Context, id string) (Table, error)
	TableByNumber(ctx context.Context, number int) (Table, error)
	TableByToken(ctx context.Context, token string) (Table, error)
	SetTableStatus(ctx context.Context, id string, status Status) error
	// ClaimTable moves the table from AVAILABLE to OCCUPIED and reports
	// false when the table was not AVAILABLE at write time.
	ClaimTable(ctx context.Context, id string) (bool, error)
	SetTableToken(ctx context.Context, id, token string) error
}

type Registry struct {
	store    Store
	newToken func() string
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, newToken: uuid.NewString}
}

func (r *Registry) FindByID(ctx context.Context, id string) (Table, error) {
	return r.store.TableByID(ctx, id)
}

func (r *Registry) FindByNumber(ctx context.Context, number int) (Table, error) {
	if number <= 0 {
		return Table{}, ErrTableNotFound
	}
	return r.store.TableByNumber(ctx, number)
}

func (r *Registry) FindByToken(ctx context.Context, token string) (Table, error) {
	if token == "" {
		return Table{}, ErrTableNotFound
	}
	return r.store.TableByToken(ctx, token)
}

// SetStatus writes status without checking the transition.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	return r.store.SetTableStatus(ctx, id, status)
}

func (r *Registry) Claim(ctx context.Context, id string) (bool, error) {
	return r.store.ClaimTable(ctx, id)
}

// IssueCheckInToken replaces the table's token; the previous one stops
// resolving immediately.
func (r *Registry) IssueCheckInToken(ctx context.Context, id string) (string, error) {
	token := r.newToken()
	if err := r.store.SetTableToken(ctx, id, token); err != nil {
		return "", err
	}
	return token, nil
}
