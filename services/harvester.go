package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hal-feed/config"
	"hal-feed/models"
	"hal-feed/providers/hal"
)

// HarvestStats sind die Kennzahlen eines vollständigen Harvest-Laufs.
type HarvestStats struct {
	Windows int
	Records int
	Chunks  int
}

// Harvester orchestriert einen vollen Zyklus: Verzeichnisse bauen oder laden,
// Collection zurücksetzen, alle Zeitfenster sequenziell abernten, Indizes
// anlegen. Fenster laufen strikt nacheinander, weil die Cursor-Paginierung
// sequenziell ist.
type Harvester struct {
	Config      *config.Config
	Fetcher     *hal.Fetcher
	Directories *DirectoryService
	Parser      *Parser
	Store       ObjectStore
	Loader      *LoadDriver
	Logger      *zap.Logger

	now func() time.Time
}

// NewHarvester erstellt einen neuen Harvester.
func NewHarvester(cfg *config.Config, fetcher *hal.Fetcher, dirs *DirectoryService,
	parser *Parser, store ObjectStore, loader *LoadDriver, logger *zap.Logger) *Harvester {
	return &Harvester{
		Config:      cfg,
		Fetcher:     fetcher,
		Directories: dirs,
		Parser:      parser,
		Store:       store,
		Loader:      loader,
		Logger:      logger,
		now:         time.Now,
	}
}

const (
	yearPrefix = "-01-01T00:00:00Z"
	yearSuffix = "-12-31T23:59:59Z"
)

// nbDaysMonth liefert die Anzahl der Tage eines Monats.
func nbDaysMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Windows partitioniert den Gesamtbestand in Zeitfenster: grobe Dekaden für
// den Altbestand, Jahresfenster 2011-2015, Monatsfenster ab 2016 und ein
// offenes Zukunftsfenster. minYear filtert Fenster unterhalb des Startjahres.
func Windows(now time.Time, minYear int) []models.Window {
	var ws []models.Window
	for _, span := range [][2]string{{"1000", "1990"}, {"1991", "2000"}, {"2001", "2010"}} {
		ws = append(ws, models.Window{Start: span[0] + yearPrefix, End: span[1] + yearSuffix})
	}
	for y := 2011; y <= 2015; y++ {
		ys := strconv.Itoa(y)
		ws = append(ws, models.Window{Start: ys + yearPrefix, End: ys + yearSuffix})
	}
	for y := 2016; y <= now.Year(); y++ {
		for m := 1; m <= 12; m++ {
			ws = append(ws, models.Window{
				Start: fmt.Sprintf("%d-%02d-01T00:00:00Z", y, m),
				End:   fmt.Sprintf("%d-%02d-%02dT23:59:59Z", y, m, nbDaysMonth(y, m)),
			})
		}
	}
	ws = append(ws, models.Window{
		Start: strconv.Itoa(now.Year()+1) + yearPrefix,
		End:   "2100" + yearSuffix,
	})

	min := strconv.Itoa(minYear)
	kept := ws[:0]
	for _, w := range ws {
		if w.Start >= min {
			kept = append(kept, w)
		}
	}
	return kept
}

// Run führt einen vollständigen Harvest-Zyklus für die Collection aus.
// Ein Fensterfehler bricht den Lauf ab und wird mit dem Fensterbezeichner
// hochgereicht; früher geflushte Chunks bleiben davon unberührt.
func (h *Harvester) Run(ctx context.Context, collection string, harvestAurehal bool, minYear int) (HarvestStats, error) {
	stats := HarvestStats{}

	dirs := Directories{}
	var err error
	if harvestAurehal {
		if dirs.Authors, err = h.Directories.BuildAuthors(ctx, collection); err != nil {
			return stats, fmt.Errorf("autoren-verzeichnis: %w", err)
		}
		if dirs.Structures, err = h.Directories.BuildStructures(ctx, collection); err != nil {
			return stats, fmt.Errorf("struktur-verzeichnis: %w", err)
		}
	} else {
		if dirs.Authors, err = h.Directories.LoadAuthors(ctx, collection); err != nil {
			return stats, fmt.Errorf("autoren-verzeichnis laden: %w", err)
		}
		if dirs.Structures, err = h.Directories.LoadStructures(ctx, collection); err != nil {
			return stats, fmt.Errorf("struktur-verzeichnis laden: %w", err)
		}
	}

	if err := h.Loader.Reset(ctx, collection); err != nil {
		return stats, fmt.Errorf("collection zurücksetzen: %w", err)
	}

	windows := Windows(h.now(), minYear)
	h.Logger.Info("Starte Harvest",
		zap.String("collection", collection), zap.Int("windows", len(windows)))

	for _, window := range windows {
		records, chunks, err := h.harvestWindow(ctx, collection, window, dirs)
		if err != nil {
			return stats, fmt.Errorf("fenster %s: %w", window.Label(), err)
		}
		stats.Windows++
		stats.Records += records
		stats.Chunks += chunks
	}

	if err := h.Loader.EnsureIndexes(ctx, collection); err != nil {
		return stats, err
	}
	h.Logger.Info("Harvest abgeschlossen",
		zap.String("collection", collection),
		zap.Int("records", stats.Records), zap.Int("chunks", stats.Chunks))
	return stats, nil
}

func (h *Harvester) harvestWindow(ctx context.Context, collection string, window models.Window, dirs Directories) (int, int, error) {
	log := h.Logger.With(zap.String("window", window.Label()))
	log.Info("Starte Fenster")

	// Das Snapshot-Datum ist der Collection-Name: Collections werden pro
	// Harvest-Zyklus nach Datum benannt.
	writer := NewChunkWriter(collection, window, collection, h.Config.ChunkSize,
		h.Store, h.Loader, h.Parser, dirs, h.Logger)

	records := 0
	err := h.Fetcher.FetchWindow(ctx, window, func(page hal.Page) error {
		records += len(page.Docs)
		return writer.Accept(ctx, page.Docs)
	})
	if err != nil {
		return records, len(writer.Flushed()), err
	}
	if err := writer.Close(ctx); err != nil {
		return records, len(writer.Flushed()), err
	}

	log.Info("Fenster abgeschlossen",
		zap.Int("records", records), zap.Int("chunks", len(writer.Flushed())))
	return records, len(writer.Flushed()), nil
}
