package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"hal"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"5004"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// HAL-API
	HalBaseURL    string        `envconfig:"HAL_BASE_URL" default:"https://api.archives-ouvertes.fr"`
	HalSearchRows int           `envconfig:"HAL_SEARCH_ROWS" default:"200"`
	HalRefRows    int           `envconfig:"HAL_REF_ROWS" default:"10000"`
	HalRetryTries int           `envconfig:"HAL_RETRY_TRIES" default:"5"`
	HalRetryDelay time.Duration `envconfig:"HAL_RETRY_DELAY" default:"300s"`
	HalTimeout    time.Duration `envconfig:"HAL_TIMEOUT" default:"100s"`
	// Requests pro Sekunde gegen die HAL-API
	HalRateLimit float64 `envconfig:"HAL_RATE_LIMIT" default:"2"`

	// Harvest
	ChunkSize      int    `envconfig:"CHUNK_SIZE" default:"25000"`
	MinYear        int    `envconfig:"MIN_YEAR" default:"1000"`
	CollectionName string `envconfig:"COLLECTION_NAME"`
	CronSchedule   string `envconfig:"CRON_SCHEDULE"`

	// Object Storage (S3-kompatibel)
	S3Key        string `envconfig:"OS_S3_KEY" required:"true"`
	S3Secret     string `envconfig:"OS_S3_SECRET" required:"true"`
	S3URL        string `envconfig:"OS_S3_URL" required:"true"`
	S3Region     string `envconfig:"OS_S3_REGION" default:"gra"`
	S3Bucket     string `envconfig:"OS_S3_BUCKET" default:"hal"`
	S3MiscBucket string `envconfig:"OS_S3_MISC_BUCKET" default:"misc"`

	// Optionale externe Personen-ID-Anreicherung (vip.jsonl im Misc-Bucket)
	PersonIDsKey string `envconfig:"PERSON_IDS_KEY" default:"vip.jsonl"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
