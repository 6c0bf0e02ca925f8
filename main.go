package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hal-feed/config"
	"hal-feed/providers/hal"
	"hal-feed/services"
	"hal-feed/storage"
)

var (
	recordsCounter prometheus.Counter
	chunksCounter  prometheus.Counter
)

func init() {
	recordsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hal_records_harvested_total",
			Help: "Total number of publication records harvested from HAL.",
		},
	)
	chunksCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hal_chunks_flushed_total",
			Help: "Total number of chunks durably flushed to object storage.",
		},
	)
	prometheus.MustRegister(recordsCounter, chunksCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
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
	logging.Info("Successfully connected to document database.")

	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	halStore := storage.NewS3Store(s3Client, cfg.S3Bucket)
	miscStore := storage.NewS3Store(s3Client, cfg.S3MiscBucket)

	fetcher := hal.NewFetcher(cfg, logging)
	parser := services.NewParser(logging)
	docStore := storage.NewDocumentDB(db, logging)
	loader := services.NewLoadDriver(docStore, halStore, logging)
	directories := services.NewDirectoryService(cfg, fetcher, halStore, miscStore, logging)
	harvester := services.NewHarvester(cfg, fetcher, directories, parser, halStore, loader, logging)

	// Ein Harvest-Lauf zur Zeit; Fenster sind sequenziell, ein zweiter Lauf
	// würde nur mit sich selbst um Cursor und Collection konkurrieren.
	var harvestMu sync.Mutex

	runHarvest := func(collection string, harvestAurehal bool, minYear int) {
		if !harvestMu.TryLock() {
			logging.Warn("Harvest läuft bereits, überspringe Start",
				zap.String("collection", collection))
			return
		}
		defer harvestMu.Unlock()

		logging.Info("Starte Harvest-Lauf",
			zap.String("collection", collection),
			zap.Bool("harvest_aurehal", harvestAurehal),
			zap.Int("min_year", minYear))
		stats, err := harvester.Run(context.Background(), collection, harvestAurehal, minYear)
		if err != nil {
			logging.Error("Harvest-Lauf fehlgeschlagen", zap.String("collection", collection), zap.Error(err))
		}
		recordsCounter.Add(float64(stats.Records))
		chunksCounter.Add(float64(stats.Chunks))
	}

	defaultCollection := func() string {
		if cfg.CollectionName != "" {
			return cfg.CollectionName
		}
		return time.Now().Format("20060102")
	}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/tasks/harvest", func(c *gin.Context) {
		type HarvestTask struct {
			CollectionName string `json:"collection_name"`
			HarvestAurehal *bool  `json:"harvest_aurehal"`
			MinYear        int    `json:"min_year"`
		}
		var req HarvestTask
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		collection := req.CollectionName
		if collection == "" {
			collection = defaultCollection()
		}
		harvestAurehal := true
		if req.HarvestAurehal != nil {
			harvestAurehal = *req.HarvestAurehal
		}
		minYear := req.MinYear
		if minYear == 0 {
			minYear = cfg.MinYear
		}
		go runHarvest(collection, harvestAurehal, minYear)
		c.JSON(http.StatusAccepted, gin.H{"collection_name": collection})
	})

	router.POST("/tasks/load", func(c *gin.Context) {
		type LoadTask struct {
			CollectionName string `json:"collection_name" binding:"required"`
		}
		var req LoadTask
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		go func() {
			count, err := loader.LoadFromObjectStorage(context.Background(), req.CollectionName)
			if err != nil {
				logging.Error("Load aus Object Storage fehlgeschlagen",
					zap.String("collection", req.CollectionName), zap.Error(err))
				return
			}
			logging.Info("Load aus Object Storage abgeschlossen",
				zap.String("collection", req.CollectionName), zap.Int("records", count))
		}()
		c.JSON(http.StatusAccepted, gin.H{"collection_name": req.CollectionName})
	})

	if cfg.CronSchedule != "" {
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled harvest job...")
			runHarvest(defaultCollection(), true, cfg.MinYear)
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
