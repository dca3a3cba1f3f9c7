package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr         string
	DataPath           string
	OutputDir          string
	MaxUploadSizeBytes int64
	MaxImagePixels     int
	HistogramScale     int
	PreviewMaxEdge     int
	SessionTTL         time.Duration
	SessionSweep       time.Duration
	CommitFormat       string
	JPEGQuality        int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		DataPath:           getEnv("DATA_PATH", "./data/state.json"),
		OutputDir:          getEnv("OUTPUT_DIR", "./data/output"),
		MaxUploadSizeBytes: getEnvInt64("MAX_UPLOAD_SIZE_BYTES", 16*1024*1024),
		MaxImagePixels:     getEnvInt("MAX_IMAGE_PIXELS", 40_000_000),
		HistogramScale:     getEnvInt("HISTOGRAM_SCALE", 256),
		PreviewMaxEdge:     getEnvInt("PREVIEW_MAX_EDGE", 512),
		SessionTTL:         getEnvDuration("SESSION_TTL_SEC", 30*time.Minute),
		SessionSweep:       getEnvDuration("SESSION_SWEEP_SEC", time.Minute),
		CommitFormat:       strings.ToLower(getEnv("COMMIT_FORMAT", "png")),
		JPEGQuality:        getEnvInt("JPEG_QUALITY", 90),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxUploadSizeBytes <= 0 {
		return errors.New("max upload size bytes must be > 0")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("max image pixels must be > 0")
	}
	if c.HistogramScale <= 0 || c.HistogramScale > 1<<16 {
		return errors.New("histogram scale must be in 1..65536")
	}
	if c.PreviewMaxEdge < 0 {
		return errors.New("preview max edge must be >= 0")
	}
	if c.SessionTTL <= 0 || c.SessionSweep <= 0 {
		return errors.New("session ttl and sweep must be > 0")
	}
	switch c.CommitFormat {
	case "png", "jpeg", "jpg":
	default:
		return errors.New("commit format must be png or jpeg")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("jpeg quality must be in 1..100")
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}
