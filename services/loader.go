package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hal-feed/models"
	"hal-feed/storage"
)

// LoadDriver füttert den Dokumentenspeicher: Drop einmal pro Harvest,
// Bulk-Insert pro transformiertem Chunk, Indizes erst nachdem alle Chunks
// geladen sind.
type LoadDriver struct {
	Docs   DocumentStore
	Store  ObjectStore
	Logger *zap.Logger
}

// NewLoadDriver erstellt einen neuen LoadDriver.
func NewLoadDriver(docs DocumentStore, store ObjectStore, logger *zap.Logger) *LoadDriver {
	return &LoadDriver{Docs: docs, Store: store, Logger: logger}
}

// Reset droppt die Ziel-Collection. Wird genau einmal pro vollem Harvest
// aufgerufen, damit Wiederholungsläufe keine Duplikate erzeugen.
func (l *LoadDriver) Reset(ctx context.Context, collection string) error {
	return l.Docs.Drop(ctx, collection)
}

// InsertChunk extrahiert aus einem angereicherten Chunk die
// oa_details-Datensätze und lädt sie per Bulk-Insert.
func (l *LoadDriver) InsertChunk(ctx context.Context, collection string, parsed []models.Publication) error {
	records := make([]models.OaRecord, 0, len(parsed))
	for _, pub := range parsed {
		records = append(records, models.OaRecord{HalID: pub.HalID, OaDetails: pub.OaDetails})
	}
	if err := l.Docs.BulkInsert(ctx, collection, records); err != nil {
		return fmt.Errorf("bulk insert in %s: %w", collection, err)
	}
	return nil
}

// EnsureIndexes legt die Lookup-Indizes der Collection an. Bewusst nach dem
// Laden aller Chunks, nicht vorher.
func (l *LoadDriver) EnsureIndexes(ctx context.Context, collection string) error {
	if err := l.Docs.CreateIndex(ctx, collection, "hal_id"); err != nil {
		return fmt.Errorf("index auf %s: %w", collection, err)
	}
	return nil
}

// LoadFromObjectStorage baut die Collection komplett aus den bereits
// persistierten geparsten Chunks im Object Storage neu auf, ohne Harvest.
func (l *LoadDriver) LoadFromObjectStorage(ctx context.Context, collection string) (int, error) {
	if err := l.Reset(ctx, collection); err != nil {
		return 0, err
	}

	prefix := fmt.Sprintf("%s/parsed/hal_parsed", collection)
	keys, err := l.Store.ListPrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("liste %s: %w", prefix, err)
	}
	l.Logger.Info("Lade Collection aus Object Storage",
		zap.String("collection", collection), zap.Int("chunks", len(keys)))

	total := 0
	for _, key := range keys {
		gz, err := l.Store.Get(ctx, key)
		if err != nil {
			return total, fmt.Errorf("hole %s: %w", key, err)
		}
		data, err := storage.Gunzip(gz)
		if err != nil {
			return total, fmt.Errorf("entpacke %s: %w", key, err)
		}
		var parsed []models.Publication
		if err := json.Unmarshal(data, &parsed); err != nil {
			return total, fmt.Errorf("parse %s: %w", key, err)
		}
		if err := l.InsertChunk(ctx, collection, parsed); err != nil {
			return total, err
		}
		total += len(parsed)
	}

	if err := l.EnsureIndexes(ctx, collection); err != nil {
		return total, err
	}
	return total, nil
}
