package container

import (
	"context"
	"fmt"
	"io"
	"time"

	"code-scanner/config"
	app "code-scanner/internal/application"
	"code-scanner/internal/domain/port"
	"code-scanner/internal/infrastructure/decoder"
	"code-scanner/internal/infrastructure/detector"
	"code-scanner/internal/infrastructure/render"
	"code-scanner/internal/infrastructure/storage"
	"code-scanner/internal/infrastructure/vision"
	"code-scanner/internal/logging"
)

type Container struct {
	UserService *app.UserService
	ScanService *app.ScanService
	Images      *storage.FileImageStore
	Stats       port.StatsRepository
	Detector    port.RegionDetector

	closers []io.Closer
}

// New собирает зависимости приложения по конфигурации
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Container, error) {
	if log == nil {
		log = logging.Nop()
	}
	c := &Container{}

	det, err := c.newDetector(ctx, cfg, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Detector = det

	c.Images, err = storage.NewFileImageStore(cfg.UploadDir)
	if err != nil {
		c.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		redisStats, err := storage.NewRedisStatsRepository(ctx, cfg.RedisURL, cfg.StatsPrefix)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, redisStats)
		c.Stats = redisStats
		log.Info("using Redis stats store", "prefix", cfg.StatsPrefix)
	} else {
		c.Stats = storage.NewMemoryStatsRepository()
	}

	decoders := app.LabelDecoders(decoder.NewBarcodeDecoder(), decoder.NewDataMatrixDecoder())
	pipeline := app.NewPipeline(det, decoders, cfg.ConfidenceThreshold, log.With("pipeline"))

	c.ScanService = app.NewScanService(pipeline, render.NewAnnotator(), c.Images, c.Stats, log.With("scan"))
	c.ScanService.SetMaxPixels(cfg.MaxImagePixels)
	c.UserService = app.NewUserService(storage.NewMemoryUserRepository())

	return c, nil
}

func (c *Container) newDetector(ctx context.Context, cfg *config.Config, log *logging.Logger) (port.RegionDetector, error) {
	switch cfg.Detector {
	case config.DetectorFullFrame:
		log.Info("using full-frame detector", "labels", cfg.DetectorLabels)
		return detector.NewFullFrameDetector(cfg.DetectorLabels...), nil

	case config.DetectorRemote:
		remote := detector.NewRemoteDetector(cfg.InferenceURL, 30*time.Second)
		if err := remote.CheckHealth(ctx); err != nil {
			// сервис модели может подняться позже
			log.Warn("inference service is not healthy", "url", cfg.InferenceURL, "error", err)
		}
		log.Info("using remote detector", "url", cfg.InferenceURL)
		return remote, nil

	case config.DetectorYOLO:
		yolo, err := vision.NewYOLODetector(cfg.ModelPath, cfg.ModelLabels)
		if err != nil {
			return nil, fmt.Errorf("load YOLO model %s: %w", cfg.ModelPath, err)
		}
		c.closers = append(c.closers, yolo)
		log.Info("using YOLO detector", "model", cfg.ModelPath, "labels", cfg.ModelLabels)
		return yolo, nil
	}
	return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
}

// Close освобождает модель и соединения
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
