package mado

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cliniq/internal/storage"
)

func newTestStore(t *testing.T) *DraftStore {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewDraftStore(st)
}

func TestDraftStoreKeys(t *testing.T) {
	assert.Equal(t, "mado/drafts/abc.pdf", DocumentKey("abc"))
	assert.Equal(t, "mado/metadata/abc.json", MetadataKey("abc"))
}

func TestDraftStoreDocumentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	document := []byte("%PDF-1.4 fake")
	require.NoError(t, store.PutDocument(ctx, "d1", document))

	got, err := store.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, document, got)
}

func TestDraftStoreMetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sentAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	meta := DraftMetadata{
		ID:            "d1",
		EncounterID:   "enc-1",
		PatientHash:   "abcd1234",
		Disease:       "Measles",
		RegionID:      "06",
		RecipientFax:  "15145550000",
		Transport:     TransportFax,
		Status:        StatusSent,
		StorageKey:    DocumentKey("d1"),
		CreatedBy:     "clin-9",
		CreatedAt:     sentAt.Add(-time.Hour),
		ProviderJobID: "JOBX",
		SentAt:        &sentAt,
		SentBy:        "dr.roe",
	}
	require.NoError(t, store.PutMetadata(ctx, meta))

	got, err := store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestDraftStoreMetadataOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := DraftMetadata{ID: "d1", Status: StatusDraft}
	require.NoError(t, store.PutMetadata(ctx, meta))

	meta.Status = StatusManualReady
	meta.Transport = TransportManual
	require.NoError(t, store.PutMetadata(ctx, meta))

	got, err := store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusManualReady, got.Status)
	assert.Equal(t, TransportManual, got.Transport)
}

func TestDraftStoreNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetMetadata(ctx, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = store.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
