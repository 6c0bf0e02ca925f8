package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hal-feed/config"
	"hal-feed/services"
	"hal-feed/storage"
)

// Einmal-Werkzeug: baut eine Collection aus den bereits im Object Storage
// liegenden geparsten Chunks neu auf, ohne die HAL-API anzufassen.
func main() {
	collection := flag.String("collection", "", "Name der Collection, die neu geladen werden soll")
	flag.Parse()
	if *collection == "" {
		log.Fatal("Fehlender Parameter: -collection")
	}

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}

	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	halStore := storage.NewS3Store(s3Client, cfg.S3Bucket)
	docStore := storage.NewDocumentDB(db, logging)
	loader := services.NewLoadDriver(docStore, halStore, logging)

	count, err := loader.LoadFromObjectStorage(context.Background(), *collection)
	if err != nil {
		logging.Fatal("Load aus Object Storage fehlgeschlagen",
			zap.String("collection", *collection), zap.Error(err))
	}
	logging.Info("Load abgeschlossen",
		zap.String("collection", *collection), zap.Int("records", count))
}
