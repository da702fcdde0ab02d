//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"
	"image"

	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
)

// ErrNoGoCV возвращается всеми операциями, если сборка без тега gocv
var ErrNoGoCV = errors.New("gocv build tag is not enabled")

type YOLODetector struct {
	InputSize      int
	ScoreThreshold float32
	NMSThreshold   float32
}

// NewYOLODetector возвращает ошибку, если сборка без тега gocv.
func NewYOLODetector(modelPath string, labels []string) (*YOLODetector, error) {
	_ = modelPath
	_ = labels
	return nil, ErrNoGoCV
}

// Detect возвращает ошибку, если сборка без тега gocv.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]entity.Region, error) {
	_ = ctx
	_ = img
	return nil, ErrNoGoCV
}

func (d *YOLODetector) Close() error {
	return nil
}

type CameraSource struct{}

// OpenCamera возвращает ошибку, если сборка без тега gocv.
func OpenCamera(device int) (*CameraSource, error) {
	return nil, apperrors.NewCameraUnavailable(device, ErrNoGoCV)
}

func (c *CameraSource) Read(ctx context.Context) (image.Image, error) {
	_ = ctx
	return nil, ErrNoGoCV
}

func (c *CameraSource) Close() error {
	return nil
}

type Preview struct{}

// NewPreview возвращает ошибку, если сборка без тега gocv.
func NewPreview(title string) (*Preview, error) {
	_ = title
	return nil, ErrNoGoCV
}

func (p *Preview) Show(img image.Image, delayMs int) (int, error) {
	_ = img
	_ = delayMs
	return -1, ErrNoGoCV
}

func (p *Preview) Close() error {
	return nil
}
