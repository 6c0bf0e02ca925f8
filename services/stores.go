package services

import (
	"context"

	"hal-feed/models"
)

// ObjectStore ist der Blob-Speicher der Pipeline (S3-kompatibel in Produktion).
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// DocumentStore ist der Bulk-Dokumentenspeicher, in den die oa_details-Auszüge
// geladen werden.
type DocumentStore interface {
	Drop(ctx context.Context, collection string) error
	BulkInsert(ctx context.Context, collection string, records []models.OaRecord) error
	CreateIndex(ctx context.Context, collection, field string) error
}
