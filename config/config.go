package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Типы детекторов областей
const (
	DetectorFullFrame = "fullframe"
	DetectorRemote    = "remote"
	DetectorYOLO      = "yolo"
)

type Config struct {
	HTTPPort       string
	UploadDir      string
	MaxUploadBytes int64
	MaxImagePixels int64 // предел ширина×высота из заголовка изображения

	ConfidenceThreshold float64
	Detector            string
	DetectorLabels      []string // метки, которые выдаёт fullframe-детектор
	InferenceURL        string
	ModelPath           string
	ModelLabels         []string // имена классов YOLO-модели по индексу

	TelegramToken string

	RedisURL    string
	StatsPrefix string

	CameraDevice    int
	CaptureInterval time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:      getEnvInt64("MAX_UPLOAD_BYTES", 16<<20),
		MaxImagePixels:      getEnvInt64("MAX_IMAGE_PIXELS", 1<<26),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 0.5),
		Detector:            strings.ToLower(getEnv("DETECTOR", DetectorFullFrame)),
		DetectorLabels:      getEnvList("DETECTOR_LABELS", []string{"qr-code", "data-matrix"}),
		InferenceURL:        getEnv("INFERENCE_URL", "http://localhost:5000/predict"),
		ModelPath:           getEnv("MODEL_PATH", "best.onnx"),
		ModelLabels:         getEnvList("MODEL_LABELS", []string{"data-matrix", "qr-code"}),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		RedisURL:            os.Getenv("REDIS_URL"),
		StatsPrefix:         getEnv("STATS_PREFIX", "codescanner:stats"),
		CameraDevice:        int(getEnvInt64("CAMERA_DEVICE", 0)),
		CaptureInterval:     getEnvDuration("CAPTURE_INTERVAL", 30*time.Millisecond),
		LogLevel:            strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1KB, got %d", c.MaxUploadBytes)
	}
	if c.MaxImagePixels < 1 || c.MaxImagePixels > 1<<30 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be in [1, 2^30], got %d", c.MaxImagePixels)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0, 1), got %v", c.ConfidenceThreshold)
	}

	switch c.Detector {
	case DetectorFullFrame:
		if len(c.DetectorLabels) == 0 {
			return fmt.Errorf("DETECTOR_LABELS is required for the %s detector", c.Detector)
		}
	case DetectorRemote:
		if c.InferenceURL == "" {
			return fmt.Errorf("INFERENCE_URL is required for the %s detector", c.Detector)
		}
	case DetectorYOLO:
		if c.ModelPath == "" || len(c.ModelLabels) == 0 {
			return fmt.Errorf("MODEL_PATH and MODEL_LABELS are required for the %s detector", c.Detector)
		}
	default:
		return fmt.Errorf("unknown DETECTOR %q", c.Detector)
	}

	if c.CaptureInterval < 0 {
		return fmt.Errorf("CAPTURE_INTERVAL must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultVal
	}
	return v
}

// getEnvList разбирает список через запятую, пустые элементы отбрасываются
func getEnvList(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
