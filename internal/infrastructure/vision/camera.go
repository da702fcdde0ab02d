//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"code-scanner/internal/apperrors"
)

// CameraSource читает кадры с камеры через OpenCV
type CameraSource struct {
	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
}

// OpenCamera открывает устройство; повторных попыток нет
func OpenCamera(device int) (*CameraSource, error) {
	vc, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, apperrors.NewCameraUnavailable(device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, apperrors.NewCameraUnavailable(device, errors.New("device is not opened"))
	}
	return &CameraSource{vc: vc, frame: gocv.NewMat()}, nil
}

// Read забирает следующий кадр
func (c *CameraSource) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, errors.New("failed to read frame")
	}
	return c.frame.ToImage()
}

// Close закрывает устройство
func (c *CameraSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Close()
	return c.vc.Close()
}

// Preview окно предпросмотра
type Preview struct {
	window *gocv.Window
}

// NewPreview открывает окно с заголовком title. Должно вызываться из главной горутины.
func NewPreview(title string) (*Preview, error) {
	return &Preview{window: gocv.NewWindow(title)}, nil
}

// Show показывает изображение и ждёт нажатия клавиши delayMs миллисекунд.
// Возвращает код клавиши или -1.
func (p *Preview) Show(img image.Image, delayMs int) (int, error) {
	mat, err := matFromImage(img)
	if err != nil {
		return -1, err
	}
	defer mat.Close()

	p.window.IMShow(mat)
	return p.window.WaitKey(delayMs), nil
}

// Close закрывает окно
func (p *Preview) Close() error {
	return p.window.Close()
}
