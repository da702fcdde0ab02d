package port

import (
	"context"
	"image"

	"code-scanner/internal/domain/entity"
)

// RegionDetector интерфейс детектора областей с кодами
type RegionDetector interface {
	// Detect возвращает области-кандидаты в порядке, в котором их выдал детектор
	Detect(ctx context.Context, img image.Image) ([]entity.Region, error)
}

// Decoder интерфейс декодера одного типа кодов
type Decoder interface {
	// Type тип кодов, которые понимает декодер
	Type() entity.CodeType

	// Decode ищет коды на вырезанной области. Координаты результата локальные,
	// отсутствие кода не является ошибкой и даёт пустой срез.
	Decode(ctx context.Context, region image.Image) ([]entity.Decoded, error)
}
