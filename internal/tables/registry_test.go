package tables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	tables map[string]Table
}

func (f *fakeStore) TableByID(_ context.Context, id string) (Table, error) {
	t, ok := f.tables[id]
	if !ok {
		return Table{}, ErrTableNotFound
	}
	return t, nil
}

func (f *fakeStore) TableByNumber(_ context.Context, number int) (Table, error) {
	for _, t := range f.tables {
		if t.Number == number {
			return t, nil
		}
	}
	return Table{}, ErrTableNotFound
}

func (f *fakeStore) TableByToken(_ context.Context, token string) (Table, error) {
	for _, t := range f.tables {
		if t.Token != "" && t.Token == token {
			return t, nil
		}
	}
	return Table{}, ErrTableNotFound
}

func (f *fakeStore) SetTableStatus(_ context.Context, id string, status Status) error {
	t, ok := f.tables[id]
	if !ok {
		return ErrTableNotFound
	}
	t.Status = status
	f.tables[id] = t
	return nil
}

func (f *fakeStore) ClaimTable(_ context.Context, id string) (bool, error) {
	t, ok := f.tables[id]
	if !ok {
		return false, ErrTableNotFound
	}
	if t.Status != StatusAvailable {
		return false, nil
	}
	t.Status = StatusOccupied
	f.tables[id] = t
	return true, nil
}

func (f *fakeStore) SetTableToken(_ context.Context, id, token string) error {
	t, ok := f.tables[id]
	if !ok {
		return ErrTableNotFound
	}
	t.Token = token
	f.tables[id] = t
	return nil
}

func newRegistry() (*Registry, *fakeStore) {
	store := &fakeStore{tables: map[string]Table{
		"t5": {ID: "t5", Number: 5, Status: StatusAvailable},
		"t7": {ID: "t7", Number: 7, Status: StatusReserved, Token: "old-token"},
	}}
	r := NewRegistry(store)
	n := 0
	r.newToken = func() string {
		n++
		return []string{"tok-a", "tok-b", "tok-c"}[n-1]
	}
	return r, store
}

func TestRegistryFind(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	tbl, err := r.FindByNumber(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "t5", tbl.ID)

	_, err = r.FindByNumber(ctx, 0)
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = r.FindByToken(ctx, "")
	assert.ErrorIs(t, err, ErrTableNotFound)

	tbl, err = r.FindByToken(ctx, "old-token")
	require.NoError(t, err)
	assert.Equal(t, 7, tbl.Number)
}

func TestRegistryIssueCheckInTokenInvalidatesPrevious(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	token, err := r.IssueCheckInToken(ctx, "t7")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", token)

	_, err = r.FindByToken(ctx, "old-token")
	assert.ErrorIs(t, err, ErrTableNotFound)

	tbl, err := r.FindByToken(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, "t7", tbl.ID)

	_, err = r.IssueCheckInToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRegistryClaim(t *testing.T) {
	r, store := newRegistry()
	ctx := context.Background()

	ok, err := r.Claim(ctx, "t5")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, StatusOccupied, store.tables["t5"].Status)

	ok, err = r.Claim(ctx, "t5")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Claim(ctx, "t7")
	require.NoError(t, err)
	assert.False(t, ok, "reserved tables are not claimable")
}

func TestRegistrySetStatusIsUnconditional(t *testing.T) {
	r, store := newRegistry()
	ctx := context.Background()

	require.NoError(t, r.SetStatus(ctx, "t7", StatusOccupied))
	require.NoError(t, r.SetStatus(ctx, "t7", StatusAvailable))
	assert.Equal(t, StatusAvailable, store.tables["t7"].Status)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("RESERVED")
	require.NoError(t, err)
	assert.Equal(t, StatusReserved, st)

	_, err = ParseStatus("reserved")
	assert.Error(t, err)
}
