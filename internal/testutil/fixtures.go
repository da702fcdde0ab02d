// Package testutil генерирует изображения с настоящими кодами для тестов.
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
)

// QRCode рисует QR-код size×size
func QRCode(t testing.TB, text string, size int) image.Image {
	t.Helper()
	img, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	require.NoError(t, err)
	return img
}

// DataMatrix рисует Data Matrix size×size
func DataMatrix(t testing.TB, text string, size int) image.Image {
	t.Helper()
	img, err := datamatrix.NewDataMatrixWriter().Encode(text, gozxing.BarcodeFormat_DATA_MATRIX, size, size, nil)
	require.NoError(t, err)
	return img
}

// Code128 рисует линейный штрихкод Code 128
func Code128(t testing.TB, text string, width, height int) image.Image {
	t.Helper()
	img, err := oned.NewCode128Writer().Encode(text, gozxing.BarcodeFormat_CODE_128, width, height, nil)
	require.NoError(t, err)
	return img
}

// Canvas белый холст w×h
func Canvas(w, h int) *image.RGBA {
	c := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(c, c.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return c
}

// Place рисует src на холсте с левым верхним углом в at
func Place(dst draw.Image, src image.Image, at image.Point) {
	r := image.Rectangle{Min: at, Max: at.Add(src.Bounds().Size())}
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

// PNG кодирует изображение в PNG
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// PatchPNGSize переписывает ширину и высоту в IHDR и пересчитывает CRC чанка.
// Пиксельные данные остаются прежними.
func PatchPNGSize(t testing.TB, data []byte, width, height uint32) []byte {
	t.Helper()
	// 8 байт сигнатуры, 4 длины, "IHDR", 13 байт данных, 4 CRC
	require.GreaterOrEqual(t, len(data), 33)
	require.Equal(t, "IHDR", string(data[12:16]))

	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

// InkBounds прямоугольник, охватывающий все тёмные пиксели
func InkBounds(img image.Image) image.Rectangle {
	var r image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 128 {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}
