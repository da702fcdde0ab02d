package app

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
	"code-scanner/internal/logging"
)

// DefaultConfidenceThreshold области с уверенностью не выше порога отбрасываются
const DefaultConfidenceThreshold = 0.5

// Метки классов детектора
const (
	LabelQRCode     = "qr-code"
	LabelBarcode    = "barcode"
	LabelDataMatrix = "data-matrix"
)

// LabelDecoders сопоставляет метки детектора декодерам
func LabelDecoders(barcode, dataMatrix port.Decoder) map[string]port.Decoder {
	return map[string]port.Decoder{
		LabelQRCode:     barcode,
		LabelBarcode:    barcode,
		LabelDataMatrix: dataMatrix,
	}
}

// Pipeline находит области, декодирует их и переводит координаты в систему полного изображения
type Pipeline struct {
	detector  port.RegionDetector
	decoders  map[string]port.Decoder
	threshold float64
	log       *logging.Logger
}

// NewPipeline создаёт конвейер распознавания
func NewPipeline(detector port.RegionDetector, decoders map[string]port.Decoder, threshold float64, log *logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		detector:  detector,
		decoders:  decoders,
		threshold: threshold,
		log:       log,
	}
}

// Run возвращает найденные коды в порядке областей детектора.
// Области без кода и ошибки декодера молча пропускаются, ошибка детектора прерывает обработку.
func (p *Pipeline) Run(ctx context.Context, img image.Image) (detections []entity.Detection, err error) {
	defer func() {
		// Паника во внешней библиотеке портит только этот кадр
		if r := recover(); r != nil {
			p.log.Error("pipeline panic recovered", "panic", r)
			detections, err = []entity.Detection{}, nil
		}
	}()

	regions, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, apperrors.NewProcessingFailed(fmt.Errorf("detect regions: %w", err))
	}

	bounds := img.Bounds()
	detections = make([]entity.Detection, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewProcessingFailed(err)
		}

		if region.Confidence <= p.threshold {
			p.log.Debug("region below threshold", "label", region.Label, "confidence", region.Confidence)
			continue
		}

		dec, ok := p.decoders[region.Label]
		if !ok || dec == nil {
			p.log.Debug("unsupported region label", "label", region.Label)
			continue
		}

		box := region.Box.Canon().Intersect(bounds)
		if box.Empty() {
			continue
		}

		decoded, err := dec.Decode(ctx, crop(img, box))
		if err != nil {
			p.log.Debug("region decode failed", "label", region.Label, "error", err)
			continue
		}

		for _, d := range decoded {
			detections = append(detections, toDetection(d, dec.Type(), region.Confidence, box.Min, bounds))
		}
	}

	return detections, nil
}

// crop копирует область в новое изображение с началом в (0, 0)
func crop(img image.Image, box image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	draw.Draw(dst, dst.Bounds(), img, box.Min, draw.Src)
	return dst
}

// toDetection переносит локальные координаты декодера на полное изображение
func toDetection(d entity.Decoded, codeType entity.CodeType, confidence float64, offset image.Point, bounds image.Rectangle) entity.Detection {
	points := make([]entity.Point, len(d.Points))
	for i, p := range d.Points {
		points[i] = entity.Point{
			X: clamp(p.X+offset.X, bounds.Min.X, bounds.Max.X-1),
			Y: clamp(p.Y+offset.Y, bounds.Min.Y, bounds.Max.Y-1),
		}
	}

	rect := d.Rect.Bounds().Add(offset).Intersect(bounds)
	return entity.Detection{
		Type:       codeType,
		Format:     d.Format,
		Data:       d.Data,
		Points:     points,
		Rect:       entity.RectFrom(rect),
		Confidence: confidence,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
