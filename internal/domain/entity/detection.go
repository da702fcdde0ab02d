package entity

import (
	"encoding/json"
	"image"
)

// CodeType тип распознанного кода
type CodeType string

const (
	CodeTypeBarcode    CodeType = "BARCODE"     // QR и линейные штрихкоды
	CodeTypeDataMatrix CodeType = "DATA-MATRIX" // Data Matrix
)

// Point точка в пикселях изображения
type Point struct {
	X int
	Y int
}

// MarshalJSON кодирует точку как пару [x, y]
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// Rect прямоугольник кода в координатах полного изображения
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectFrom строит Rect из image.Rectangle
func RectFrom(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{Left: r.Min.X, Top: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Bounds возвращает прямоугольник как image.Rectangle
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// Detection один найденный и раскодированный код
type Detection struct {
	Type       CodeType `json:"type"`
	Format     string   `json:"format"` // конкретная символика: QR_CODE, CODE_128, DATA_MATRIX...
	Data       string   `json:"data"`
	Points     []Point  `json:"points"` // контур по порядку обхода
	Rect       Rect     `json:"rect"`
	Confidence float64  `json:"confidence"`
}

// Label подпись, которая рисуется над кодом
func (d Detection) Label() string {
	return string(d.Type) + ": " + d.Data
}

// Region область-кандидат от детектора
type Region struct {
	Label      string          // метка класса детектора, например "qr-code"
	Box        image.Rectangle // в координатах полного изображения
	Confidence float64
}

// Decoded результат декодера в координатах вырезанной области
type Decoded struct {
	Format string
	Data   string
	Points []Point
	Rect   Rect
}
