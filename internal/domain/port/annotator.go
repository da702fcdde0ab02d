package port

import (
	"image"

	"code-scanner/internal/domain/entity"
)

// Annotator рисует найденные коды поверх изображения
type Annotator interface {
	// Annotate возвращает копию изображения с контурами и подписями
	Annotate(img image.Image, detections []entity.Detection) image.Image

	// Encode кодирует изображение в формат выходного файла
	Encode(img image.Image) ([]byte, error)
}
