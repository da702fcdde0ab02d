package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// RemoteDetector отправляет изображение во внешний сервис с моделью
type RemoteDetector struct {
	inferenceURL string
	client       *http.Client
}

// box ответ сервиса инференса
type box struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// NewRemoteDetector создаёт адаптер к сервису инференса
func NewRemoteDetector(inferenceURL string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		inferenceURL: inferenceURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// Detect выполняет инференс через внешний сервис
func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]entity.Region, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []box `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// сервис отдаёт координаты от (0, 0), переносим в систему координат изображения
	origin := img.Bounds().Min
	regions := make([]entity.Region, 0, len(result.Detections))
	for _, b := range result.Detections {
		r := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Add(origin)
		regions = append(regions, entity.Region{
			Label:      b.Class,
			Box:        r,
			Confidence: b.Confidence,
		})
	}
	return regions, nil
}

// CheckHealth проверяет доступность сервиса инференса
func (d *RemoteDetector) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.inferenceURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

var _ port.RegionDetector = (*RemoteDetector)(nil)
