package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory query.Store for Engine tests.
type fakeStore struct {
	rows          []RawRow
	total         int
	distinct      map[string][]string
	p1ByLot       map[int64]map[string]any
	p2ByLot       map[int64][]map[string]any
	p3ByLot       map[int64][]map[string]any
	suggested     []LotSuggestion
	capturedLimit int
}

func (f *fakeStore) Search(_ context.Context, _ string, _ Filters, _ Page) ([]RawRow, int, error) {
	return f.rows, f.total, nil
}

func (f *fakeStore) DistinctValues(_ context.Context, _ string, field string) ([]string, error) {
	return f.distinct[field], nil
}

func (f *fakeStore) SuggestLots(_ context.Context, _, _ string, limit int) ([]LotSuggestion, error) {
	f.capturedLimit = limit

	return f.suggested, nil
}

func (f *fakeStore) FindP1ByLot(_ context.Context, _ string, lotNoNorm int64) (map[string]any, bool, error) {
	v, ok := f.p1ByLot[lotNoNorm]

	return v, ok, nil
}

func (f *fakeStore) FindP2ItemsByLot(_ context.Context, _ string, lotNoNorm int64) ([]map[string]any, error) {
	return f.p2ByLot[lotNoNorm], nil
}

func (f *fakeStore) FindP3ItemsByLot(_ context.Context, _ string, lotNoNorm int64) ([]map[string]any, error) {
	return f.p3ByLot[lotNoNorm], nil
}

// spec §4.H "P2 merge rule": no winder_number filter folds the 20 winder
// rows for a lot into one Record with AdditionalRows populated.
func TestSearch_P2MergeRule(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		rows: []RawRow{
			{TraceKey: "a", LotNoNorm: 2507173, DataType: DataTypeP2, Fields: map[string]any{"winder_number": 1}},
			{TraceKey: "a", LotNoNorm: 2507173, DataType: DataTypeP2, Fields: map[string]any{"winder_number": 2}},
		},
		total: 2,
	}
	e := New(store)

	result, err := e.Search(context.Background(), "tenant-1", Filters{DataType: DataTypeP2}, Page{})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Len(t, result.Records[0].AdditionalRows, 2)
	assert.Nil(t, result.Records[0].WinderNumber)
}

// When a winder_number filter is present, rows are NOT merged: each
// winder stands alone (spec §4.H).
func TestSearch_WinderFilterSkipsMerge(t *testing.T) {
	t.Parallel()

	winder := 5
	store := &fakeStore{
		rows: []RawRow{
			{TraceKey: "a", LotNoNorm: 2507173, DataType: DataTypeP2, WinderNumber: &winder, Fields: map[string]any{"winder_number": 5}},
		},
		total: 1,
	}
	e := New(store)

	result, err := e.Search(context.Background(), "tenant-1", Filters{DataType: DataTypeP2, WinderNumber: &winder}, Page{})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.NotNil(t, result.Records[0].WinderNumber)
	assert.Equal(t, 5, *result.Records[0].WinderNumber)
	assert.Nil(t, result.Records[0].AdditionalRows)
}

func TestSearch_P1NoMerge(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		rows: []RawRow{
			{TraceKey: "a", LotNoNorm: 1, DataType: DataTypeP1, Fields: map[string]any{}},
			{TraceKey: "b", LotNoNorm: 2, DataType: DataTypeP1, Fields: map[string]any{}},
		},
		total: 2,
	}
	e := New(store)

	result, err := e.Search(context.Background(), "tenant-1", Filters{DataType: DataTypeP1}, Page{})
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
}

func TestPage_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero values default", Page{}, Page{Page: 1, PageSize: DefaultPageSize}},
		{"negative page clamps to 1", Page{Page: -3, PageSize: 10}, Page{Page: 1, PageSize: 10}},
		{"oversized page size clamps", Page{Page: 1, PageSize: MaxPageSize + 100}, Page{Page: 1, PageSize: MaxPageSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

// spec §4.H: trace detail returns nil/empty for missing parents, never
// an error.
func TestTrace_MissingParentsAreNilNotError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{p1ByLot: map[int64]map[string]any{}}
	e := New(store)

	key := EncodeTraceKey(123456)

	detail, err := e.Trace(context.Background(), "tenant-1", key)
	require.NoError(t, err)
	assert.Nil(t, detail.P1)
	assert.Empty(t, detail.P2Items)
	assert.Empty(t, detail.P3Items)
}

func TestTrace_InvalidKey(t *testing.T) {
	t.Parallel()

	e := New(&fakeStore{})

	_, err := e.Trace(context.Background(), "tenant-1", "not-a-valid-key!!")
	assert.ErrorIs(t, err, ErrTraceKeyInvalid)
}

func TestEncodeDecodeTraceKey_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, lot := range []int64{0, 1, 2507173, 999999999} {
		key := EncodeTraceKey(lot)

		decoded, err := DecodeTraceKey(key)
		require.NoError(t, err)
		assert.Equal(t, lot, decoded)
	}
}

// spec §4.H: options enumeration is sorted lexicographically and capped
// at 1000 values.
func TestOptions_SortedAndCapped(t *testing.T) {
	t.Parallel()

	values := make([]string, 0, MaxOptionValues+10)
	for i := MaxOptionValues + 9; i >= 0; i-- {
		values = append(values, "v"+string(rune('a'+i%26)))
	}

	store := &fakeStore{distinct: map[string][]string{"machine_no": values}}
	e := New(store)

	got, err := e.Options(context.Background(), "tenant-1", "machine_no")
	require.NoError(t, err)
	assert.Len(t, got, MaxOptionValues)
	assert.True(t, sortedAscending(got))
}

func sortedAscending(vs []string) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i-1] > vs[i] {
			return false
		}
	}

	return true
}

func TestSuggestions_LimitClamp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{suggested: []LotSuggestion{{LotNoNorm: 2507173, Canonical: "2507173_02"}}}
	e := New(store)

	_, err := e.Suggestions(context.Background(), "tenant-1", "2507173", 0)
	require.NoError(t, err)
	assert.Equal(t, MaxSuggestions, store.capturedLimit, "zero limit substitutes the default cap")

	_, err = e.Suggestions(context.Background(), "tenant-1", "2507173", MaxSuggestions+500)
	require.NoError(t, err)
	assert.Equal(t, MaxSuggestions, store.capturedLimit, "oversized limit clamps to the cap")

	_, err = e.Suggestions(context.Background(), "tenant-1", "2507173", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, store.capturedLimit)
}
