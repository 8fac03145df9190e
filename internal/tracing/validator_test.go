package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linelot/linelot/internal/schema"
)

func TestValidateColumns_RequiredAndType(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	min := 0.0
	max := 100.0

	fields := []schema.FieldSpec{
		{Column: "material", Type: schema.FieldText, Required: true, Enum: []string{"H2", "H5", "H8"}},
		{Column: "thickness1", Type: schema.FieldFloat, Min: &min, Max: &max},
	}

	errs := v.ValidateColumns(map[string]string{"thickness1": "150"}, fields)
	require.Len(t, errs, 2)
	assert.Equal(t, string(ECRequired), errs[0].ErrorCode)
	assert.Equal(t, string(ECRange), errs[1].ErrorCode)
}

func TestValidateColumns_EnumAndBool(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	fields := []schema.FieldSpec{
		{Column: "material", Type: schema.FieldText, Enum: []string{"H2", "H5", "H8"}},
		{Column: "passed", Type: schema.FieldBool},
	}

	errs := v.ValidateColumns(map[string]string{"material": "H9", "passed": "Y"}, fields)
	require.Len(t, errs, 1)
	assert.Equal(t, string(ECEnum), errs[0].ErrorCode)
}

func TestValidateCrossField_P2AppearanceNotes(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	errs := v.ValidateCrossField(TableP2, map[string]string{"appearance": "NG"})
	require.Len(t, errs, 1)
	assert.Equal(t, "notes", errs[0].Field)
}

func TestValidateCrossField_P3MachineRequiresMold(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	errs := v.ValidateCrossField(TableP3, map[string]string{"machine_no": "M1"})
	require.Len(t, errs, 1)
	assert.Equal(t, "mold_no", errs[0].Field)
}

func TestValidateCrossRow_P2DuplicateWinder(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	rows := []BatchRow{
		{RowIndex: 1, LotNoNorm: 100, Winder: 1},
		{RowIndex: 2, LotNoNorm: 100, Winder: 1},
	}

	errs := v.ValidateCrossRow(TableP2, rows)
	require.Contains(t, errs, 2)
	assert.NotContains(t, errs, 1)
	assert.Equal(t, string(ECUniqueInFile), errs[2][0].ErrorCode)
}

func TestValidateCrossRow_P3DuplicateProductID(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	rows := []BatchRow{
		{RowIndex: 1, ProductID: "20250902_P24_238-2_301"},
		{RowIndex: 2, ProductID: "20250902_P24_238-2_301"},
	}

	errs := v.ValidateCrossRow(TableP3, rows)
	require.Contains(t, errs, 2)
	assert.Equal(t, "product_id", errs[2][0].Field)
}

type fakeLotStore struct {
	found map[int64]*FoundRecords
}

func (f *fakeLotStore) CommitRecords(context.Context, string, CommitBatch) error { return nil }
func (f *fakeLotStore) FindByLot(_ context.Context, _ string, lotNoNorm int64) (*FoundRecords, error) {
	return f.found[lotNoNorm], nil
}
func (f *fakeLotStore) CreateJob(context.Context, *ImportJob, []*ImportFile) error        { return nil }
func (f *fakeLotStore) GetJob(context.Context, string) (*ImportJob, error)                { return nil, nil }
func (f *fakeLotStore) UpdateJobStatus(context.Context, *ImportJob) error                 { return nil }
func (f *fakeLotStore) InsertStagingRows(context.Context, []*StagingRow) error            { return nil }
func (f *fakeLotStore) ListStagingRows(context.Context, string) ([]*StagingRow, error)    { return nil, nil }
func (f *fakeLotStore) UpdateStagingRowErrors(context.Context, string, []ErrorEntry) error { return nil }
func (f *fakeLotStore) ListErrors(context.Context, string, int, int) ([]*StagingRow, error) {
	return nil, nil
}
func (f *fakeLotStore) FileAlreadyCommitted(context.Context, string, TableCode, string) (bool, error) {
	return false, nil
}
func (f *fakeLotStore) CommitJob(context.Context, *ImportJob) error { return nil }
func (f *fakeLotStore) HealthCheck(context.Context) error           { return nil }

var _ Store = (*fakeLotStore)(nil)

func TestValidateCrossTable_MissingParent(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	store := &fakeLotStore{found: map[int64]*FoundRecords{}}

	errs, err := v.ValidateCrossTable(context.Background(), store, "tenant-a", TableP3, []BatchRow{{RowIndex: 1, LotNoNorm: 42}})
	require.NoError(t, err)
	require.Contains(t, errs, 1)
	assert.Equal(t, string(ECFKMissing), errs[1][0].ErrorCode)
}

func TestValidateCrossTable_ParentPresent(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	store := &fakeLotStore{found: map[int64]*FoundRecords{42: {P2: &P2Record{ID: "p2-1"}}}}

	errs, err := v.ValidateCrossTable(context.Background(), store, "tenant-a", TableP3, []BatchRow{{RowIndex: 1, LotNoNorm: 42}})
	require.NoError(t, err)
	assert.Empty(t, errs)
}
