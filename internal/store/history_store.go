package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/aeroprep/examd/internal/config"
	"github.com/aeroprep/examd/internal/model"
	"github.com/aeroprep/examd/internal/storage"
)

// HistoryStore persists the ordered exam history list, newest first. The
// engine only ever appends; retention is the storage layer's concern.
type HistoryStore struct {
	gateway storage.Gateway
	log     zerolog.Logger
}

// NewHistoryStore creates a HistoryStore.
func NewHistoryStore(gateway storage.Gateway, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		gateway: gateway,
		log:     log.With().Str("component", "history_store").Logger(),
	}
}

// Load reads the persisted history. A missing key yields an empty list; a
// value that is not a valid list is discarded (key deleted) and also yields
// an empty list.
func (h *HistoryStore) Load(ctx context.Context) []model.ExamHistoryItem {
	data, err := h.gateway.Get(ctx, config.StorageKey.History())
	if errors.Is(err, storage.ErrNotFound) {
		return []model.ExamHistoryItem{}
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("History read failed, starting empty")
		return []model.ExamHistoryItem{}
	}

	var items []model.ExamHistoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		h.log.Warn().Msg("Discarding corrupt history value")
		if delErr := h.gateway.Delete(ctx, config.StorageKey.History()); delErr != nil {
			h.log.Error().Err(delErr).Msg("Failed to clear corrupt history key")
		}
		return []model.ExamHistoryItem{}
	}
	if items == nil {
		items = []model.ExamHistoryItem{}
	}
	return items
}

// Prepend puts item at the head of the list and persists the result. The
// updated list is returned either way; a write failure only costs durability.
func (h *HistoryStore) Prepend(ctx context.Context, items []model.ExamHistoryItem, item model.ExamHistoryItem) []model.ExamHistoryItem {
	updated := append([]model.ExamHistoryItem{item}, items...)

	data, err := json.Marshal(updated)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode history")
		return updated
	}
	if err := h.gateway.Set(ctx, config.StorageKey.History(), data); err != nil {
		h.log.Warn().Err(err).Msg("History write failed, in-memory list remains authoritative")
	}
	return updated
}
