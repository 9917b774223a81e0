package mado

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cliniq/internal/storage"
)

const (
	documentKeyPrefix = "mado/drafts/"
	metadataKeyPrefix = "mado/metadata/"
)

// DraftStore persists filled documents and their metadata records under
// parallel namespaced key paths. Metadata updates rewrite the full record;
// concurrent updates to the same draft are last-write-wins.
type DraftStore struct {
	storage storage.Storage
}

func NewDraftStore(st storage.Storage) *DraftStore {
	return &DraftStore{storage: st}
}

func DocumentKey(draftID string) string {
	return documentKeyPrefix + draftID + ".pdf"
}

func MetadataKey(draftID string) string {
	return metadataKeyPrefix + draftID + ".json"
}

func (s *DraftStore) PutDocument(ctx context.Context, draftID string, document []byte) error {
	if err := s.storage.Put(ctx, DocumentKey(draftID), bytes.NewReader(document), "application/pdf"); err != nil {
		return fmt.Errorf("failed to store draft document: %w", err)
	}
	return nil
}

func (s *DraftStore) GetDocument(ctx context.Context, draftID string) ([]byte, error) {
	reader, err := s.storage.Retrieve(ctx, DocumentKey(draftID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to retrieve draft document: %w", err)
	}
	defer reader.Close()

	document, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft document: %w", err)
	}
	return document, nil
}

func (s *DraftStore) PutMetadata(ctx context.Context, meta DraftMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode draft metadata: %w", err)
	}

	if err := s.storage.Put(ctx, MetadataKey(meta.ID), bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("failed to store draft metadata: %w", err)
	}
	return nil
}

func (s *DraftStore) GetMetadata(ctx context.Context, draftID string) (DraftMetadata, error) {
	reader, err := s.storage.Retrieve(ctx, MetadataKey(draftID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return DraftMetadata{}, ErrDraftNotFound
		}
		return DraftMetadata{}, fmt.Errorf("failed to retrieve draft metadata: %w", err)
	}
	defer reader.Close()

	var meta DraftMetadata
	if err := json.NewDecoder(reader).Decode(&meta); err != nil {
		return DraftMetadata{}, fmt.Errorf("failed to decode draft metadata: %w", err)
	}
	return meta, nil
}

// DocumentURL returns a time-limited retrieval reference to the filled
// document.
func (s *DraftStore) DocumentURL(ctx context.Context, draftID string, expiration time.Duration) (string, error) {
	url, err := s.storage.GetURL(ctx, DocumentKey(draftID), expiration)
	if err != nil {
		return "", fmt.Errorf("failed to create download URL: %w", err)
	}
	return url, nil
}
