package app

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
	"code-scanner/internal/infrastructure/render"
	"code-scanner/internal/logging"
)

// AllowedExtensions расширения файлов, которые принимает загрузка
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"bmp":  true,
	"gif":  true,
}

// AllowedFile проверяет расширение имени файла
func AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return ext != "" && AllowedExtensions[strings.ToLower(ext)]
}

// ScanService собирает конвейер, отрисовку, хранение и статистику
type ScanService struct {
	pipeline  *Pipeline
	annotator port.Annotator
	images    port.ImageStore
	stats     port.StatsRepository
	log       *logging.Logger
	maxPixels int64

	now     func() time.Time
	newName func() string
}

// NewScanService создаёт сервис сканирования. images и stats могут быть nil.
func NewScanService(pipeline *Pipeline, annotator port.Annotator, images port.ImageStore, stats port.StatsRepository, log *logging.Logger) *ScanService {
	if log == nil {
		log = logging.Nop()
	}
	return &ScanService{
		pipeline:  pipeline,
		annotator: annotator,
		images:    images,
		stats:     stats,
		log:       log,
		maxPixels: render.DefaultMaxPixels,
		now:       time.Now,
		newName: func() string {
			return "processed_" + uuid.NewString() + ".jpg"
		},
	}
}

// SetMaxPixels задаёт предел площади входного изображения
func (s *ScanService) SetMaxPixels(n int64) {
	s.maxPixels = n
}

// ScanUpload обрабатывает загруженный файл и сохраняет изображение с разметкой
func (s *ScanService) ScanUpload(ctx context.Context, filename string, data []byte) (*entity.ScanResult, error) {
	if !AllowedFile(filename) {
		return nil, apperrors.NewUnsupportedFormat(filename)
	}

	result, err := s.ScanImage(ctx, data)
	if err != nil {
		return nil, err
	}

	if s.images == nil {
		return result, nil
	}
	name, err := s.images.Save(ctx, s.newName(), result.Annotated)
	if err != nil {
		return nil, apperrors.NewProcessingFailed(fmt.Errorf("save processed image: %w", err))
	}
	result.ProcessedImage = name
	return result, nil
}

// ScanImage декодирует байты изображения и возвращает коды и JPEG с разметкой
func (s *ScanService) ScanImage(ctx context.Context, data []byte) (*entity.ScanResult, error) {
	img, err := render.DecodeImage(data, s.maxPixels)
	if err != nil {
		return nil, apperrors.NewInvalidImage(err)
	}

	result, err := s.ScanFrame(ctx, img)
	if err != nil {
		return nil, err
	}

	result.Annotated, err = s.annotator.Encode(result.Image)
	if err != nil {
		return nil, apperrors.NewProcessingFailed(err)
	}
	return result, nil
}

// ScanFrame обрабатывает уже декодированный кадр; результат не кодируется и не сохраняется
func (s *ScanService) ScanFrame(ctx context.Context, img image.Image) (*entity.ScanResult, error) {
	detections, err := s.pipeline.Run(ctx, img)
	if err != nil {
		return nil, err
	}

	s.record(ctx, len(detections))

	return &entity.ScanResult{
		Detections: detections,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Image:      s.annotator.Annotate(img, detections),
	}, nil
}

// Stats возвращает статистику сканирований
func (s *ScanService) Stats(ctx context.Context) (entity.ScanStats, error) {
	if s.stats == nil {
		return entity.ScanStats{}, nil
	}
	return s.stats.Get(ctx)
}

// record не влияет на результат: сбой статистики только логируется
func (s *ScanService) record(ctx context.Context, codes int) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Record(ctx, codes, s.now()); err != nil {
		s.log.Warn("failed to record scan stats", "error", err)
	}
}
