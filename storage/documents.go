package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hal-feed/models"
)

// collectionNameRE begrenzt Collection-Namen auf unkritische Tabellennamen.
var collectionNameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// DocumentDB ist der Dokumentenspeicher der Pipeline: pro Collection eine
// Postgres-Tabelle mit hal_id und dem Datensatz als jsonb.
type DocumentDB struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDocumentDB erstellt einen DocumentDB auf einer bestehenden Verbindung.
func NewDocumentDB(db *gorm.DB, logger *zap.Logger) *DocumentDB {
	return &DocumentDB{db: db, logger: logger}
}

func validCollection(collection string) error {
	if !collectionNameRE.MatchString(collection) {
		return fmt.Errorf("storage: ungültiger Collection-Name %q", collection)
	}
	return nil
}

// Drop entfernt die Collection-Tabelle, falls vorhanden.
func (d *DocumentDB) Drop(ctx context.Context, collection string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	d.logger.Info("Droppe Collection", zap.String("collection", collection))
	return d.db.WithContext(ctx).
		Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, collection)).Error
}

// BulkInsert legt die Collection-Tabelle bei Bedarf an und fügt alle
// Datensätze in Batches ein.
func (d *DocumentDB) BulkInsert(ctx context.Context, collection string, records []models.OaRecord) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	create := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (id bigserial PRIMARY KEY, hal_id text, data jsonb)`,
		collection)
	if err := d.db.WithContext(ctx).Exec(create).Error; err != nil {
		return err
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"hal_id": r.HalID,
			"data":   string(data),
		})
	}
	return d.db.WithContext(ctx).Table(collection).CreateInBatches(rows, 500).Error
}

// CreateIndex legt einen Index auf ein Feld der Collection an (idempotent).
func (d *DocumentDB) CreateIndex(ctx context.Context, collection, field string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	if !collectionNameRE.MatchString(field) {
		return fmt.Errorf("storage: ungültiger Feldname %q", field)
	}
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (%s)`,
		"idx_"+collection+"_"+field, collection, field)
	return d.db.WithContext(ctx).Exec(stmt).Error
}
