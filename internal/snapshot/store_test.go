package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiceye/civiceye-backend/pkg/models"
)

func sampleComplaints() []models.Complaint {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return []models.Complaint{{
		ID:            "cmp_1",
		UserID:        "u1",
		UserName:      "John Citizen",
		IssueType:     models.IssueGarbage,
		AIDescription: "Overflowing bin on the corner",
		SeverityScore: 2,
		Status:        models.StatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
		Updates:       []models.ComplaintUpdate{},
	}}
}

func Test_FileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "complaints.json")
	store := NewFileStore(path)
	ctx := context.Background()

	want := sampleComplaints()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// No snapshot yet is a normal first boot, not an error.
func Test_FileStore_MissingFile_IsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func Test_FileStore_CorruptFile_IsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "complaints.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
}

func Test_MemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	want := sampleComplaints()
	require.NoError(t, store.Save(ctx, want))
	assert.Equal(t, 1, store.Saves())

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// Documents from a future schema are unreadable rather than half-parsed.
func Test_Decode_RejectsUnknownVersion(t *testing.T) {
	store := NewMemoryStore()
	store.SetRaw([]byte(`{"version":2,"complaints":[]}`))

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "unsupported version")
}

func Test_Decode_NilComplaints_BecomesEmptySlice(t *testing.T) {
	store := NewMemoryStore()
	store.SetRaw([]byte(`{"version":1}`))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
