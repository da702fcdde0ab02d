package detector

import (
	"context"
	"image"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// FullFrameDetector отдаёт всё изображение как одну область на каждую метку.
// Используется, когда модели нет: каждый декодер сам ищет код на всём кадре.
type FullFrameDetector struct {
	labels []string
}

// NewFullFrameDetector создаёт детектор для указанных меток
func NewFullFrameDetector(labels ...string) *FullFrameDetector {
	return &FullFrameDetector{labels: labels}
}

func (d *FullFrameDetector) Detect(ctx context.Context, img image.Image) ([]entity.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	regions := make([]entity.Region, 0, len(d.labels))
	for _, label := range d.labels {
		regions = append(regions, entity.Region{
			Label:      label,
			Box:        img.Bounds(),
			Confidence: 1,
		})
	}
	return regions, nil
}

var _ port.RegionDetector = (*FullFrameDetector)(nil)
