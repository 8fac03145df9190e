package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_CanonicalizesWhitespace(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]string{" Production  Date ", "Lot No"})
	b := Fingerprint([]string{"Production Date", "Lot No"})

	assert.Equal(t, a, b)
}

func TestFingerprint_CaseSensitive(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]string{"Production Date"})
	b := Fingerprint([]string{"production date"})

	assert.NotEqual(t, a, b)
}

type fakeStore struct {
	byFingerprint map[string]*Version
	byID          map[string]*Version
}

func (f *fakeStore) FindByFingerprint(_ context.Context, _ string, _ TableCode, fingerprint string) (*Version, error) {
	return f.byFingerprint[fingerprint], nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Version, error) {
	return f.byID[id], nil
}

func (f *fakeStore) Register(_ context.Context, v *Version) error {
	f.byFingerprint[v.HeaderFingerprint] = v
	f.byID[v.ID] = v

	return nil
}

func TestRegistry_ResolveUnknownFingerprint(t *testing.T) {
	t.Parallel()

	store := &fakeStore{byFingerprint: map[string]*Version{}, byID: map[string]*Version{}}
	reg := NewRegistry(store)

	_, err := reg.Resolve(context.Background(), "tenant-a", TableP1, []string{"Production Date"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeaderMismatch)
}

func TestRegistry_ResolveKnownFingerprint(t *testing.T) {
	t.Parallel()

	headers := []string{"Production Date", "Lot No"}
	fp := Fingerprint(headers)
	want := &Version{ID: "sv-1", TenantID: "tenant-a", TableCode: TableP1, HeaderFingerprint: fp}

	store := &fakeStore{
		byFingerprint: map[string]*Version{fp: want},
		byID:          map[string]*Version{want.ID: want},
	}
	reg := NewRegistry(store)

	got, err := reg.Resolve(context.Background(), "tenant-a", TableP1, headers)
	require.NoError(t, err)
	assert.Same(t, want, got)

	cached, err := reg.Get(context.Background(), "sv-1")
	require.NoError(t, err)
	assert.Same(t, want, cached)
}
