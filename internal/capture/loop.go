// Package capture крутит цикл захвата кадров с камеры в отдельной горутине.
//
// В полёте не больше одного кадра: каждый новый результат заменяет
// необработанный предыдущий, очереди нет.
package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/logging"
)

// FrameSource источник кадров
type FrameSource interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// FrameScanner обрабатывает один кадр
type FrameScanner interface {
	ScanFrame(ctx context.Context, img image.Image) (*entity.ScanResult, error)
}

// Frame результат обработки одного кадра
type Frame struct {
	Seq    uint64
	At     time.Time
	Result *entity.ScanResult
	Err    error // ошибка обработки; Result тогда содержит исходный кадр без кодов
}

var ErrAlreadyRunning = errors.New("capture loop is already running")

// Loop цикл захвата
type Loop struct {
	source   FrameSource
	scanner  FrameScanner
	interval time.Duration
	log      *logging.Logger

	running atomic.Bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	frames  chan Frame

	mu     sync.Mutex
	latest *Frame
	seq    uint64
}

// NewLoop создаёт цикл; interval задаёт паузу после каждого кадра
func NewLoop(source FrameSource, scanner FrameScanner, interval time.Duration, log *logging.Logger) *Loop {
	if log == nil {
		log = logging.Nop()
	}
	return &Loop{
		source:   source,
		scanner:  scanner,
		interval: interval,
		log:      log,
		frames:   make(chan Frame, 1),
	}
}

// Start запускает горутину захвата
func (l *Loop) Start(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop снимает флаг работы и ждёт завершения горутины
func (l *Loop) Stop() {
	l.running.Store(false)
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// Running флаг работы цикла
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Frames канал с последним необработанным кадром
func (l *Loop) Frames() <-chan Frame {
	return l.frames
}

// Latest последний опубликованный кадр
func (l *Loop) Latest() (Frame, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest == nil {
		return Frame{}, false
	}
	return *l.latest, true
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer l.running.Store(false)

	for l.running.Load() {
		if ctx.Err() != nil {
			return
		}

		img, err := l.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("failed to read frame", "error", err)
			l.sleep(ctx)
			continue
		}

		res, err := l.scanner.ScanFrame(ctx, img)
		if err != nil {
			l.log.Warn("frame processing failed", "error", err)
			res = &entity.ScanResult{
				Detections: []entity.Detection{},
				Width:      img.Bounds().Dx(),
				Height:     img.Bounds().Dy(),
				Image:      img,
			}
		}
		l.publish(res, err)
		l.sleep(ctx)
	}
}

// publish кладёт кадр в канал, вытесняя непрочитанный
func (l *Loop) publish(res *entity.ScanResult, err error) {
	l.mu.Lock()
	l.seq++
	f := Frame{Seq: l.seq, At: time.Now(), Result: res, Err: err}
	l.latest = &f
	l.mu.Unlock()

	select {
	case l.frames <- f:
		return
	default:
	}
	select {
	case <-l.frames:
	default:
	}
	select {
	case l.frames <- f:
	default:
	}
}

func (l *Loop) sleep(ctx context.Context) {
	if l.interval <= 0 {
		return
	}
	t := time.NewTimer(l.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
