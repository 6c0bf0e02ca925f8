package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"hal-feed/models"
	"hal-feed/providers/hal"
	"hal-feed/storage"
)

// ChunkHandle identifiziert einen durabel geschriebenen Chunk. Die Indizes
// sind pro Fenster monoton steigend, damit ein Lauf auf Vollständigkeit
// geprüft werden kann.
type ChunkHandle struct {
	Window models.Window
	Index  int
	Count  int
}

// ChunkWriter puffert rohe Notices über Seitengrenzen hinweg und flusht sie
// in größenbeschränkten Chunks: erst der rohe Blob, dann der angereicherte,
// dann die Übergabe des oa_details-Auszugs an den Loader. Erst wenn alle drei
// Schritte durch sind, gilt der Chunk als geschrieben und der Puffer wird
// geleert.
type ChunkWriter struct {
	collection   string
	window       models.Window
	snapshotDate string
	chunkSize    int
	store        ObjectStore
	loader       *LoadDriver
	parser       *Parser
	dirs         Directories
	logger       *zap.Logger

	buffer     []hal.Notice
	chunkIndex int
	flushed    []ChunkHandle
}

// NewChunkWriter erstellt einen ChunkWriter für ein Harvest-Fenster.
func NewChunkWriter(collection string, window models.Window, snapshotDate string, chunkSize int,
	store ObjectStore, loader *LoadDriver, parser *Parser, dirs Directories, logger *zap.Logger) *ChunkWriter {
	return &ChunkWriter{
		collection:   collection,
		window:       window,
		snapshotDate: snapshotDate,
		chunkSize:    chunkSize,
		store:        store,
		loader:       loader,
		parser:       parser,
		dirs:         dirs,
		logger:       logger,
	}
}

// Accept puffert eine Seite roher Notices und flusht, sobald die
// Chunk-Grenze erreicht ist.
func (w *ChunkWriter) Accept(ctx context.Context, docs []hal.Notice) error {
	w.buffer = append(w.buffer, docs...)
	if len(w.buffer) >= w.chunkSize {
		return w.flush(ctx)
	}
	return nil
}

// Close flusht am Fensterende unbedingt alle Restdatensätze, auch unterhalb
// der Chunk-Grenze.
func (w *ChunkWriter) Close(ctx context.Context) error {
	if len(w.buffer) > 0 {
		return w.flush(ctx)
	}
	return nil
}

// Flushed liefert die bisher durabel geschriebenen Chunks.
func (w *ChunkWriter) Flushed() []ChunkHandle {
	return w.flushed
}

func (w *ChunkWriter) flush(ctx context.Context) error {
	count := len(w.buffer)
	log := w.logger.With(
		zap.String("window", w.window.Label()),
		zap.Int("chunk_index", w.chunkIndex),
		zap.Int("count", count))

	// 1. Rohdaten durabel schreiben.
	rawKey := fmt.Sprintf("%s/raw/hal_%s_%d.json.gz", w.collection, w.window.Label(), w.chunkIndex)
	if err := w.putJSON(ctx, rawKey, w.buffer); err != nil {
		return fmt.Errorf("chunk %d: rohdaten: %w", w.chunkIndex, err)
	}

	// 2. Anreichern und die geparste Fassung schreiben.
	parsed := make([]models.Publication, 0, count)
	for _, notice := range w.buffer {
		parsed = append(parsed, w.parser.ParseNotice(notice, w.dirs.Authors, w.dirs.Structures, w.snapshotDate))
	}
	parsedKey := fmt.Sprintf("%s/parsed/hal_parsed_%s_%d.json.gz", w.collection, w.window.Label(), w.chunkIndex)
	if err := w.putJSON(ctx, parsedKey, parsed); err != nil {
		return fmt.Errorf("chunk %d: geparste daten: %w", w.chunkIndex, err)
	}

	// 3. oa_details-Auszug an den Loader übergeben.
	if err := w.loader.InsertChunk(ctx, w.collection, parsed); err != nil {
		return fmt.Errorf("chunk %d: load: %w", w.chunkIndex, err)
	}

	log.Info("Chunk geschrieben")
	w.flushed = append(w.flushed, ChunkHandle{Window: w.window, Index: w.chunkIndex, Count: count})
	w.buffer = nil
	w.chunkIndex++
	return nil
}

func (w *ChunkWriter) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	gz, err := storage.Gzip(data)
	if err != nil {
		return err
	}
	return w.store.Put(ctx, key, gz)
}
