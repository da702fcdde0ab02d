package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
)

// Format формат выходного изображения
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// DefaultMaxPixels предел площади изображения по умолчанию (64 Мп)
const DefaultMaxPixels int64 = 1 << 26

var (
	errEmptyImage = errors.New("empty image")

	// ErrTooManyPixels размеры из заголовка превышают предел
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// DecodeImage превращает байты PNG, JPEG, GIF или BMP в image.Image.
// Размеры берутся из заголовка до декодирования: буфер под пиксели
// выделяется, только если площадь не больше maxPixels (<= 0 означает DefaultMaxPixels).
func DecodeImage(data []byte, maxPixels int64) (image.Image, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errEmptyImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errEmptyImage
	}
	return img, nil
}

// EncodeImage кодирует изображение в выбранный формат
func EncodeImage(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
