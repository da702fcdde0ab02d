package render

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/testutil"
)

func TestDecodeImage_Formats(t *testing.T) {
	src := testutil.Canvas(40, 30)

	pngData := testutil.PNG(t, src)
	img, err := DecodeImage(pngData, 0)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	jpegData, err := EncodeImage(src, FormatJPEG)
	require.NoError(t, err)
	img, err = DecodeImage(jpegData, 0)
	require.NoError(t, err)
	require.Equal(t, 40, img.Bounds().Dx())

	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, src))
	_, err = DecodeImage(bmpBuf.Bytes(), 0)
	require.NoError(t, err)

	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, src, nil))
	_, err = DecodeImage(gifBuf.Bytes(), 0)
	require.NoError(t, err)
}

func TestDecodeImage_Corrupt(t *testing.T) {
	_, err := DecodeImage(nil, 0)
	require.Error(t, err)

	_, err = DecodeImage([]byte("definitely not an image"), 0)
	require.Error(t, err)

	pngData := testutil.PNG(t, testutil.Canvas(10, 10))
	_, err = DecodeImage(pngData[:len(pngData)/2], 0)
	require.Error(t, err)
}

func TestDecodeImage_RejectsHugeDimensionsBeforeAllocating(t *testing.T) {
	// 1x1 PNG, в заголовке которого объявлено 100000x100000
	data := testutil.PatchPNGSize(t, testutil.PNG(t, testutil.Canvas(1, 1)), 100000, 100000)
	require.Less(t, len(data), 200)

	_, err := DecodeImage(data, DefaultMaxPixels)
	require.ErrorIs(t, err, ErrTooManyPixels)

	// предел настраивается
	_, err = DecodeImage(testutil.PNG(t, testutil.Canvas(40, 30)), 1000)
	require.ErrorIs(t, err, ErrTooManyPixels)
	_, err = DecodeImage(testutil.PNG(t, testutil.Canvas(40, 30)), 1200)
	require.NoError(t, err)
}

func TestAnnotator_DrawsOutlineInGreen(t *testing.T) {
	src := testutil.Canvas(100, 100)
	det := entity.Detection{
		Type:   entity.CodeTypeBarcode,
		Data:   "hi",
		Points: []entity.Point{{X: 10, Y: 40}, {X: 90, Y: 40}, {X: 90, Y: 90}, {X: 10, Y: 90}},
		Rect:   entity.Rect{Left: 10, Top: 40, Width: 80, Height: 50},
	}

	out := NewAnnotator().Annotate(src, []entity.Detection{det})
	require.Equal(t, src.Bounds(), out.Bounds())

	// верхняя сторона контура: линия толщиной 2 вокруг y=40
	r, g, b, _ := out.At(50, 39).RGBA()
	require.Greater(t, g>>8, uint32(200))
	require.Less(t, r>>8, uint32(60))
	require.Less(t, b>>8, uint32(60))

	// внутри контура ничего не рисуется
	require.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(out.At(50, 70)))

	// исходник не меняется
	require.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(src.At(50, 39)))
}

func TestAnnotator_EncodeJPEG(t *testing.T) {
	a := NewAnnotator()
	data, err := a.Encode(a.Annotate(testutil.Canvas(20, 20), nil))
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8}, data[:2])
}
