package history

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medipatient-api-server/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "diagnoses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testHistoryRecord() *Record {
	return &Record{
		ID: uuid.New().String(),
		Patient: &domain.PatientRecord{
			Age:              65,
			Gender:           domain.GenderMale,
			Temperature:      39.5,
			HeartRate:        115,
			SystolicBP:       85,
			DiastolicBP:      50,
			RespiratoryRate:  28,
			OxygenSaturation: 88,
			Symptoms:         []string{"fever", "confusion"},
		},
		Diagnosis: &domain.FinalDiagnosis{
			PrimaryDiagnosis: "Sepsis",
			Confidence:       0.85,
			Source:           domain.SourceHybridValidated,
			SeverityScore:    0.79,
			UrgencyLevel:     domain.UrgencyEmergency,
		},
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := testHistoryRecord()
	require.NoError(t, store.Save(ctx, record))
	assert.False(t, record.CreatedAt.IsZero())

	retrieved, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, record.ID, retrieved.ID)
	assert.Equal(t, "Sepsis", retrieved.Diagnosis.PrimaryDiagnosis)
	assert.Equal(t, domain.UrgencyEmergency, retrieved.Diagnosis.UrgencyLevel)
	assert.Equal(t, record.Patient.Symptoms, retrieved.Patient.Symptoms)
	assert.Equal(t, 39.5, retrieved.Patient.Temperature)
}

func TestSQLiteStore_SaveRequiresID(t *testing.T) {
	store := newTestStore(t)

	record := testHistoryRecord()
	record.ID = ""
	err := store.Save(context.Background(), record)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID is required")
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := newTestStore(t)

	record, err := store.Get(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		record := testHistoryRecord()
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(ctx, record))
		ids = append(ids, record.ID)
	}

	list, err := store.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[4], list[0].ID)
	assert.Equal(t, ids[3], list[1].ID)

	rest, err := store.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestSQLiteStore_CountAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	record := testHistoryRecord()
	require.NoError(t, store.Save(ctx, record))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, store.Delete(ctx, record.ID))

	retrieved, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, testHistoryRecord()))
	}

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 3, export.Count)
	assert.Len(t, export.Records, 3)
}
