package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DETECTOR", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("DETECTOR_LABELS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, int64(16<<20), cfg.MaxUploadBytes)
	require.Equal(t, int64(1<<26), cfg.MaxImagePixels)
	require.Equal(t, 0.5, cfg.ConfidenceThreshold)
	require.Equal(t, DetectorFullFrame, cfg.Detector)
	require.Equal(t, []string{"qr-code", "data-matrix"}, cfg.DetectorLabels)
	require.Equal(t, 30*time.Millisecond, cfg.CaptureInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DETECTOR", "Remote")
	t.Setenv("INFERENCE_URL", "http://ml:5000/predict")
	t.Setenv("DETECTOR_LABELS", " barcode , ,data-matrix")
	t.Setenv("CAPTURE_INTERVAL", "100ms")
	t.Setenv("MAX_IMAGE_PIXELS", "1000000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DetectorRemote, cfg.Detector)
	require.Equal(t, "http://ml:5000/predict", cfg.InferenceURL)
	require.Equal(t, []string{"barcode", "data-matrix"}, cfg.DetectorLabels)
	require.Equal(t, 100*time.Millisecond, cfg.CaptureInterval)
	require.Equal(t, int64(1000000), cfg.MaxImagePixels)
}

func TestValidate_Rejects(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTPPort:            "8080",
			UploadDir:           "uploads",
			MaxUploadBytes:      1 << 20,
			MaxImagePixels:      1 << 26,
			ConfidenceThreshold: 0.5,
			Detector:            DetectorFullFrame,
			DetectorLabels:      []string{"qr-code"},
		}
	}
	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Detector = "magic"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.ConfidenceThreshold = 1.5
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxUploadBytes = 10
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxImagePixels = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.MaxImagePixels = 1<<30 + 1
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.DetectorLabels = nil
	require.Error(t, cfg.Validate())
}
