package app

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
	"code-scanner/internal/testutil"
)

type fixedDetector struct {
	regions []entity.Region
	err     error
}

func (d *fixedDetector) Detect(ctx context.Context, img image.Image) ([]entity.Region, error) {
	return d.regions, d.err
}

// fakeDecoder отдаёт заранее заданный результат и запоминает, что получил
type fakeDecoder struct {
	codeType entity.CodeType
	result   []entity.Decoded
	err      error
	panicMsg string
	seen     []image.Rectangle
}

func (d *fakeDecoder) Type() entity.CodeType { return d.codeType }

func (d *fakeDecoder) Decode(ctx context.Context, region image.Image) ([]entity.Decoded, error) {
	if d.panicMsg != "" {
		panic(d.panicMsg)
	}
	d.seen = append(d.seen, region.Bounds())
	return d.result, d.err
}

func localCode(data string) entity.Decoded {
	return entity.Decoded{
		Format: "QR_CODE",
		Data:   data,
		Points: []entity.Point{{X: 5, Y: 5}, {X: 15, Y: 5}, {X: 15, Y: 15}, {X: 5, Y: 15}},
		Rect:   entity.Rect{Left: 5, Top: 5, Width: 10, Height: 10},
	}
}

func newTestPipeline(regions []entity.Region, decoders map[string]port.Decoder) *Pipeline {
	return NewPipeline(&fixedDetector{regions: regions}, decoders, DefaultConfidenceThreshold, nil)
}

func TestPipeline_ConfidenceThreshold(t *testing.T) {
	dec := &fakeDecoder{codeType: entity.CodeTypeBarcode, result: []entity.Decoded{localCode("x")}}
	box := image.Rect(0, 0, 50, 50)
	p := newTestPipeline([]entity.Region{
		{Label: LabelQRCode, Box: box, Confidence: 0.4},
		{Label: LabelQRCode, Box: box, Confidence: 0.5},
		{Label: LabelQRCode, Box: box, Confidence: 0.51},
	}, map[string]port.Decoder{LabelQRCode: dec})

	got, err := p.Run(context.Background(), testutil.Canvas(100, 100))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 0.51, got[0].Confidence)
	require.Len(t, dec.seen, 1)
}

func TestPipeline_TranslatesToImageCoordinates(t *testing.T) {
	dec := &fakeDecoder{codeType: entity.CodeTypeBarcode, result: []entity.Decoded{localCode("offset")}}
	p := newTestPipeline([]entity.Region{
		{Label: LabelQRCode, Box: image.Rect(100, 50, 160, 110), Confidence: 0.9},
	}, map[string]port.Decoder{LabelQRCode: dec})

	got, err := p.Run(context.Background(), testutil.Canvas(200, 200))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, entity.Rect{Left: 105, Top: 55, Width: 10, Height: 10}, got[0].Rect)
	require.Equal(t, []entity.Point{{X: 105, Y: 55}, {X: 115, Y: 55}, {X: 115, Y: 65}, {X: 105, Y: 65}}, got[0].Points)
	require.Equal(t, entity.CodeTypeBarcode, got[0].Type)
	require.Equal(t, "QR_CODE", got[0].Format)

	// декодер получает область с началом в (0, 0)
	require.Equal(t, []image.Rectangle{image.Rect(0, 0, 60, 60)}, dec.seen)
}

func TestPipeline_ClampsToImageBounds(t *testing.T) {
	big := entity.Decoded{
		Format: "DATA_MATRIX",
		Data:   "edge",
		Points: []entity.Point{{X: -10, Y: 0}, {X: 80, Y: 0}, {X: 80, Y: 80}},
		Rect:   entity.Rect{Left: -10, Top: -10, Width: 100, Height: 100},
	}
	dec := &fakeDecoder{codeType: entity.CodeTypeDataMatrix, result: []entity.Decoded{big}}
	p := newTestPipeline([]entity.Region{
		{Label: LabelDataMatrix, Box: image.Rect(60, 60, 140, 140), Confidence: 0.8},
	}, map[string]port.Decoder{LabelDataMatrix: dec})

	img := testutil.Canvas(100, 100)
	got, err := p.Run(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// область обрезается изображением
	require.Equal(t, []image.Rectangle{image.Rect(0, 0, 40, 40)}, dec.seen)
	require.True(t, got[0].Rect.Bounds().In(img.Bounds()))
	// точки лежат на пикселях изображения, последний пиксель 99
	for _, p := range got[0].Points {
		require.True(t, image.Pt(p.X, p.Y).In(img.Bounds()), p)
	}
	require.Equal(t, entity.Point{X: 99, Y: 99}, got[0].Points[2])
}

func TestPipeline_SkipsUnknownLabelsEmptyBoxesAndFailures(t *testing.T) {
	failing := &fakeDecoder{codeType: entity.CodeTypeBarcode, err: errors.New("checksum")}
	empty := &fakeDecoder{codeType: entity.CodeTypeDataMatrix}
	p := newTestPipeline([]entity.Region{
		{Label: "signature", Box: image.Rect(0, 0, 10, 10), Confidence: 0.99},
		{Label: LabelQRCode, Box: image.Rect(0, 0, 10, 10), Confidence: 0.99},
		{Label: LabelDataMatrix, Box: image.Rect(0, 0, 10, 10), Confidence: 0.99},
		{Label: LabelDataMatrix, Box: image.Rect(500, 500, 600, 600), Confidence: 0.99},
	}, map[string]port.Decoder{LabelQRCode: failing, LabelDataMatrix: empty})

	got, err := p.Run(context.Background(), testutil.Canvas(50, 50))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Len(t, empty.seen, 1)
}

func TestPipeline_KeepsDetectorOrder(t *testing.T) {
	qr := &fakeDecoder{codeType: entity.CodeTypeBarcode, result: []entity.Decoded{localCode("qr")}}
	dm := &fakeDecoder{codeType: entity.CodeTypeDataMatrix, result: []entity.Decoded{localCode("dm")}}
	p := newTestPipeline([]entity.Region{
		{Label: LabelDataMatrix, Box: image.Rect(50, 50, 80, 80), Confidence: 0.7},
		{Label: LabelQRCode, Box: image.Rect(0, 0, 30, 30), Confidence: 0.9},
		{Label: LabelDataMatrix, Box: image.Rect(50, 50, 80, 80), Confidence: 0.6},
	}, LabelDecoders(qr, dm))

	got, err := p.Run(context.Background(), testutil.Canvas(100, 100))
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []string{"dm", "qr", "dm"}, []string{got[0].Data, got[1].Data, got[2].Data})
}

func TestPipeline_DetectorErrorAborts(t *testing.T) {
	p := NewPipeline(&fixedDetector{err: errors.New("model offline")}, nil, DefaultConfidenceThreshold, nil)

	_, err := p.Run(context.Background(), testutil.Canvas(10, 10))
	require.Error(t, err)
	require.Equal(t, apperrors.CodeProcessingFailed, apperrors.CodeOf(err))
	require.ErrorContains(t, err, "model offline")
}

func TestPipeline_PanicDegradesToNoDetections(t *testing.T) {
	dec := &fakeDecoder{codeType: entity.CodeTypeBarcode, panicMsg: "nil attribute"}
	p := newTestPipeline([]entity.Region{
		{Label: LabelQRCode, Box: image.Rect(0, 0, 10, 10), Confidence: 0.9},
	}, map[string]port.Decoder{LabelQRCode: dec})

	got, err := p.Run(context.Background(), testutil.Canvas(10, 10))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dec := &fakeDecoder{codeType: entity.CodeTypeBarcode}
	p := newTestPipeline([]entity.Region{
		{Label: LabelQRCode, Box: image.Rect(0, 0, 10, 10), Confidence: 0.9},
	}, map[string]port.Decoder{LabelQRCode: dec})

	_, err := p.Run(ctx, testutil.Canvas(10, 10))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, dec.seen)
}
