package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// Annotator рисует контуры кодов и их содержимое
type Annotator struct {
	Color     color.Color
	LineWidth float64
	TextGap   int // отступ подписи над прямоугольником
	Format    Format
}

// NewAnnotator создаёт аннотатор: зелёные линии толщиной 2, подпись на 10px выше кода, JPEG
func NewAnnotator() *Annotator {
	return &Annotator{
		Color:     color.RGBA{G: 255, A: 255},
		LineWidth: 2,
		TextGap:   10,
		Format:    FormatJPEG,
	}
}

// Annotate возвращает копию изображения с контурами и подписями
func (a *Annotator) Annotate(img image.Image, detections []entity.Detection) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetColor(a.Color)
	dc.SetLineWidth(a.LineWidth)
	dc.SetFontFace(basicfont.Face7x13)

	// NewContextForImage переносит картинку в (0, 0)
	origin := img.Bounds().Min
	lineHeight := float64(basicfont.Face7x13.Height)

	for _, d := range detections {
		if len(d.Points) > 0 {
			for i, p := range d.Points {
				x, y := float64(p.X-origin.X), float64(p.Y-origin.Y)
				if i == 0 {
					dc.MoveTo(x, y)
				} else {
					dc.LineTo(x, y)
				}
			}
			dc.ClosePath()
			dc.Stroke()
		}

		x := float64(d.Rect.Left - origin.X)
		y := float64(d.Rect.Top - origin.Y - a.TextGap)
		if y < lineHeight {
			y = lineHeight
		}
		dc.DrawString(d.Label(), x, y)
	}

	return dc.Image()
}

// Encode кодирует результат в формат аннотатора
func (a *Annotator) Encode(img image.Image) ([]byte, error) {
	return EncodeImage(img, a.Format)
}

// Проверка реализации интерфейса
var _ port.Annotator = (*Annotator)(nil)
