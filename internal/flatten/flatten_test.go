package flatten

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linelot/linelot/internal/tracing"
)

type fakeStore struct {
	p3ByProduct map[string][]P3Row
	p3ByMonth   []P3Row
	p2Headers   map[int64]tracing.P2Record
	p2Items     map[P2ItemKey]tracing.P2Item
	p1Records   map[int64]tracing.P1Record
}

func (f *fakeStore) FindP3ByProductIDs(_ context.Context, _ string, productIDs []string) ([]P3Row, error) {
	var out []P3Row

	for _, id := range productIDs {
		out = append(out, f.p3ByProduct[id]...)
	}

	return out, nil
}

func (f *fakeStore) FindP3ByMonth(_ context.Context, _ string, _, _ int) ([]P3Row, error) {
	return f.p3ByMonth, nil
}

func (f *fakeStore) FindP2HeadersByLots(_ context.Context, _ string, lots []int64) (map[int64]tracing.P2Record, error) {
	out := map[int64]tracing.P2Record{}

	for _, lot := range lots {
		if h, ok := f.p2Headers[lot]; ok {
			out[lot] = h
		}
	}

	return out, nil
}

func (f *fakeStore) FindP2ItemsByKeys(_ context.Context, _ string, keys []P2ItemKey) (map[P2ItemKey]tracing.P2Item, error) {
	out := map[P2ItemKey]tracing.P2Item{}

	for _, k := range keys {
		if item, ok := f.p2Items[k]; ok {
			out[k] = item
		}
	}

	return out, nil
}

func (f *fakeStore) FindP1ByLots(_ context.Context, _ string, lots []int64) (map[int64]tracing.P1Record, error) {
	out := map[int64]tracing.P1Record{}

	for _, lot := range lots {
		if r, ok := f.p1Records[lot]; ok {
			out[lot] = r
		}
	}

	return out, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestFlatten_FullJoin(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		p3ByProduct: map[string][]P3Row{
			"prod-a": {{
				P3Item: tracing.P3Item{
					ID: "p3-1", RowNo: 1, ProductID: strPtr("prod-a"), LotNo: "LOT1",
					ProductionDate: day, SourceWinder: intPtr(3),
				},
				LotNoNorm: 1001,
			}},
		},
		p2Headers: map[int64]tracing.P2Record{
			1001: {ID: "p2-1", LotNoRaw: "LOT1", ProductionDate: day},
		},
		p2Items: map[P2ItemKey]tracing.P2Item{
			{P2RecordID: "p2-1", WinderNumber: 3}: {WinderNumber: 3, Appearance: "OK"},
		},
		p1Records: map[int64]tracing.P1Record{
			1001: {ID: "p1-1", LotNoRaw: "LOT1", LotNoNorm: 1001, ProductionDate: day},
		},
	}

	f := New(store, DefaultColumns())
	result, err := f.Flatten(context.Background(), "tenant-1", Query{ProductIDs: []string{"prod-a"}})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.True(t, result.HasData)
	assert.Equal(t, "none", result.Metadata.Compression)
	assert.Equal(t, "explicit", result.Metadata.NullHandling)

	row := result.Data[0]
	assert.Equal(t, "LOT1", row["lot_no"])
	assert.Equal(t, "LOT1", row["p1_lot_no_raw"])
	assert.Equal(t, "OK", row["p2_appearance"])
}

func TestFlatten_MissingParents_EmitsNull(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		p3ByProduct: map[string][]P3Row{
			"prod-a": {{
				P3Item:    tracing.P3Item{ID: "p3-1", RowNo: 1, ProductID: strPtr("prod-a"), LotNo: "LOT-ORPHAN"},
				LotNoNorm: 9999,
			}},
		},
	}

	f := New(store, DefaultColumns())
	result, err := f.Flatten(context.Background(), "tenant-1", Query{ProductIDs: []string{"prod-a"}})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)

	row := result.Data[0]
	assert.Nil(t, row["p1_lot_no_raw"])
	assert.Nil(t, row["p2_appearance"])
	assert.Equal(t, "LOT-ORPHAN", row["lot_no"])
}

func TestFlatten_NoMatches_EmptyNotNull(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	f := New(store, DefaultColumns())

	result, err := f.Flatten(context.Background(), "tenant-1", Query{ProductIDs: []string{"nope"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.False(t, result.HasData)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestFlatten_EmptyProductIDs_NotAnError(t *testing.T) {
	t.Parallel()

	f := New(&fakeStore{}, DefaultColumns())

	result, err := f.Flatten(context.Background(), "tenant-1", Query{ProductIDs: []string{}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.False(t, result.HasData)
	assert.Equal(t, []FlatRow{}, result.Data)
}

func TestFlatten_TooManyProductIDs(t *testing.T) {
	t.Parallel()

	ids := make([]string, MaxProductIDs+1)
	for i := range ids {
		ids[i] = "x"
	}

	f := New(&fakeStore{}, DefaultColumns())
	_, err := f.Flatten(context.Background(), "tenant-1", Query{ProductIDs: ids})
	assert.ErrorIs(t, err, ErrTooManyProductIDs)
}

func TestFlatten_ResultTooLarge(t *testing.T) {
	t.Parallel()

	var rows []P3Row

	for i := 0; i < forcedGzipMax+1; i++ {
		rows = append(rows, P3Row{P3Item: tracing.P3Item{ID: "p3"}})
	}

	store := &fakeStore{p3ByMonth: rows}
	f := New(store, DefaultColumns())

	_, err := f.Flatten(context.Background(), "tenant-1", Query{Year: 2026, Month: 3})
	assert.ErrorIs(t, err, ErrResultTooLarge)
}

func TestFlatten_CompressionThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		count int
		want  string
	}{
		{noCompressMax, "none"},
		{noCompressMax + 1, "gzip"},
		{autoGzipMax, "gzip"},
		{autoGzipMax + 1, "gzip_forced"},
		{forcedGzipMax, "gzip_forced"},
	}

	for _, tc := range cases {
		got, ok := compressionFor(tc.count)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestSortP3Rows_NullsLast(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []P3Row{
		{P3Item: tracing.P3Item{ID: "no-product", ProductionDate: day}},
		{P3Item: tracing.P3Item{ID: "b", ProductID: strPtr("b"), ProductionDate: day}},
		{P3Item: tracing.P3Item{ID: "a", ProductID: strPtr("a"), ProductionDate: day}},
	}

	sortP3Rows(rows)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
	assert.Equal(t, "no-product", rows[2].ID)
}

func TestQuery_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Query{Year: 2026, Month: 3}.Validate())
	assert.NoError(t, Query{}.Validate())
	assert.ErrorIs(t, Query{ProductIDs: make([]string, MaxProductIDs+1)}.Validate(), ErrTooManyProductIDs)
}
