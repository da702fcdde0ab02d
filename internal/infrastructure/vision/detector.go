//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// YOLODetector ищет области с кодами ONNX-моделью YOLOv8 через OpenCV DNN
type YOLODetector struct {
	InputSize      int
	ScoreThreshold float32
	NMSThreshold   float32

	labels []string
	mu     sync.Mutex // gocv.Net нельзя использовать из нескольких горутин
	net    gocv.Net
}

// NewYOLODetector загружает модель; labels задают имена классов по индексу
func NewYOLODetector(modelPath string, labels []string) (*YOLODetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}
	return &YOLODetector{
		InputSize:      640,
		ScoreThreshold: 0.25,
		NMSThreshold:   0.45,
		labels:         labels,
		net:            net,
	}, nil
}

// Detect прогоняет изображение через сеть и возвращает области после NMS
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]entity.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := matFromImage(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(d.InputSize, d.InputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	// Выход YOLOv8: [1, 4+классы, якоря]
	sizes := out.Size()
	if len(sizes) != 3 || sizes[1] <= 4 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	rows, anchors := sizes[1], sizes[2]

	reshaped := out.Reshape(1, rows)
	defer reshaped.Close()
	preds := gocv.NewMat()
	defer preds.Close()
	gocv.Transpose(reshaped, &preds)

	xFactor := float32(mat.Cols()) / float32(d.InputSize)
	yFactor := float32(mat.Rows()) / float32(d.InputSize)

	var (
		boxes   []image.Rectangle
		scores  []float32
		classes []int
	)
	for i := 0; i < anchors; i++ {
		best, class := float32(0), -1
		for c := 4; c < rows; c++ {
			if s := preds.GetFloatAt(i, c); s > best {
				best, class = s, c-4
			}
		}
		if class < 0 || best < d.ScoreThreshold {
			continue
		}

		cx, cy := preds.GetFloatAt(i, 0), preds.GetFloatAt(i, 1)
		w, h := preds.GetFloatAt(i, 2), preds.GetFloatAt(i, 3)
		left := int((cx - w/2) * xFactor)
		top := int((cy - h/2) * yFactor)
		boxes = append(boxes, image.Rect(left, top, left+int(w*xFactor), top+int(h*yFactor)))
		scores = append(scores, best)
		classes = append(classes, class)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	origin := img.Bounds().Min
	keep := gocv.NMSBoxes(boxes, scores, d.ScoreThreshold, d.NMSThreshold)
	regions := make([]entity.Region, 0, len(keep))
	for _, idx := range keep {
		regions = append(regions, entity.Region{
			Label:      d.label(classes[idx]),
			Box:        boxes[idx].Add(origin),
			Confidence: float64(scores[idx]),
		})
	}
	return regions, nil
}

// Close освобождает сеть
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *YOLODetector) label(class int) string {
	if class >= 0 && class < len(d.labels) {
		return d.labels[class]
	}
	return fmt.Sprintf("class-%d", class)
}

// matFromImage превращает image.Image в gocv.Mat (BGR)
func matFromImage(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if err == nil {
		mat.Close()
		err = errors.New("empty image")
	}
	return gocv.NewMat(), fmt.Errorf("failed to convert image: %w", err)
}

var _ port.RegionDetector = (*YOLODetector)(nil)
