package decoder

import (
	"context"
	"image"
	"math"
	"sort"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"

	"code-scanner/internal/domain/entity"
)

// readerFactory создаёт новый reader на каждый вызов: reader'ы gozxing хранят состояние
type readerFactory func() gozxing.Reader

type multiReaderFactory func() multi.MultipleBarcodeReader

const (
	// глубина рекурсивного поиска по частям изображения вокруг найденного кода
	maxSearchDepth = 4
	// части уже этой стороны не перепроверяются
	minSearchSide = 100
	// центр поискового узора QR отстоит от края символа на 3.5 модуля
	finderCenterInset = 3.5
)

// zxingDecoder собирает все коды области. Multi-reader'ы находят все символы
// своей символики за проход, одиночные reader'ы повторно запускаются на частях
// изображения слева, сверху, справа и снизу от найденного кода.
type zxingDecoder struct {
	codeType entity.CodeType
	multi    []multiReaderFactory
	readers  []readerFactory
	hints    map[gozxing.DecodeHintType]interface{}
}

// hit найденный код в координатах области
type hit struct {
	format     gozxing.BarcodeFormat
	text       string
	points     []gozxing.ResultPoint
	moduleSize float64 // оценка размера модуля по поисковым узорам QR, 0 если нет
}

func (d *zxingDecoder) Type() entity.CodeType {
	return d.codeType
}

func (d *zxingDecoder) Decode(ctx context.Context, region image.Image) ([]entity.Decoded, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(region)
	if err != nil {
		return nil, err
	}

	var hits []hit
	for _, newReader := range d.multi {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// NotFound, Checksum и Format означают одно: этим reader'ом прочитать нечего
		results, err := newReader().DecodeMultiple(bmp, d.hints)
		if err != nil {
			continue
		}
		for _, r := range results {
			hits = append(hits, hitFrom(r, 0, 0))
		}
	}

	for _, newReader := range d.readers {
		if err := d.search(ctx, bmp, newReader, image.Point{}, 0, &hits); err != nil {
			return nil, err
		}
	}

	if len(hits) == 0 {
		return nil, nil
	}
	return collect(hits, image.Rect(0, 0, bmp.GetWidth(), bmp.GetHeight())), nil
}

// search читает один код и ищет следующие в частях вокруг него
func (d *zxingDecoder) search(ctx context.Context, bmp *gozxing.BinaryBitmap, newReader readerFactory, offset image.Point, depth int, hits *[]hit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := newReader().Decode(bmp, d.hints)
	if err != nil || result == nil {
		return nil
	}
	*hits = append(*hits, hitFrom(result, offset.X, offset.Y))

	if depth >= maxSearchDepth || len(result.GetResultPoints()) == 0 {
		return nil
	}

	w, h := bmp.GetWidth(), bmp.GetHeight()
	found := pointsBounds(result.GetResultPoints())
	parts := []image.Rectangle{
		image.Rect(0, 0, found.Min.X, h),
		image.Rect(0, 0, w, found.Min.Y),
		image.Rect(found.Max.X, 0, w, h),
		image.Rect(0, found.Max.Y, w, h),
	}
	for _, part := range parts {
		part = part.Intersect(image.Rect(0, 0, w, h))
		if part.Dx() < minSearchSide || part.Dy() < minSearchSide {
			continue
		}
		sub, err := bmp.Crop(part.Min.X, part.Min.Y, part.Dx(), part.Dy())
		if err != nil {
			continue
		}
		if err := d.search(ctx, sub, newReader, offset.Add(part.Min), depth+1, hits); err != nil {
			return err
		}
	}
	return nil
}

func hitFrom(r *gozxing.Result, dx, dy int) hit {
	h := hit{format: r.GetBarcodeFormat(), text: r.GetText()}

	var sizes, n float64
	for _, p := range r.GetResultPoints() {
		if p == nil {
			continue
		}
		if fp, ok := p.(interface{ GetEstimatedModuleSize() float64 }); ok {
			sizes += fp.GetEstimatedModuleSize()
			n++
		}
		h.points = append(h.points, gozxing.NewResultPoint(p.GetX()+float64(dx), p.GetY()+float64(dy)))
	}
	if n > 0 {
		h.moduleSize = sizes / n
	}
	return h
}

// collect строит контуры и отбрасывает повторы: тот же код, найденный ещё раз
// в соседней части, и линейные "коды", прочитанные внутри двумерного символа
func collect(hits []hit, bounds image.Rectangle) []entity.Decoded {
	type kept struct {
		format gozxing.BarcodeFormat
		text   string
		rect   image.Rectangle
		area   bool
	}

	var seen []kept
	out := make([]entity.Decoded, 0, len(hits))
	for _, h := range hits {
		pts, rect := outline(h.format, h.points, h.moduleSize, bounds)
		r := rect.Bounds()

		skip := false
		for _, k := range seen {
			if k.format == h.format && k.text == h.text && k.rect.Overlaps(r) {
				skip = true
				break
			}
			if k.area && len(h.points) < 3 && allInside(h.points, k.rect) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		seen = append(seen, kept{format: h.format, text: h.text, rect: r, area: len(h.points) >= 3})
		out = append(out, entity.Decoded{
			Format: h.format.String(),
			Data:   h.text,
			Points: pts,
			Rect:   rect,
		})
	}
	return out
}

// outline строит контур и прямоугольник кода по точкам, которые вернул reader.
// Линейные коды дают две точки на строке сканирования, для них контур
// растягивается на всю высоту области. Точки контура лежат внутри bounds.
func outline(format gozxing.BarcodeFormat, resultPoints []gozxing.ResultPoint, moduleSize float64, bounds image.Rectangle) ([]entity.Point, entity.Rect) {
	var raw []vec
	for _, p := range resultPoints {
		if p != nil {
			raw = append(raw, vec{p.GetX(), p.GetY()})
		}
	}

	if len(raw) < 3 {
		minX, maxX := bounds.Min.X, bounds.Max.X
		if len(raw) > 0 {
			minX, maxX = raw[0].round().X, raw[0].round().X
			for _, p := range raw[1:] {
				minX = min(minX, p.round().X)
				maxX = max(maxX, p.round().X)
			}
		}
		r := image.Rect(minX, bounds.Min.Y, maxX, bounds.Max.Y).Intersect(bounds)
		return clampPoints(corners(r), bounds), entity.RectFrom(r)
	}

	// Для QR первые три точки: центры поисковых узоров (нижний левый,
	// верхний левый, верхний правый). Четвёртый угол достраиваем, затем
	// сдвигаем углы от центров узоров к краю символа.
	if format == gozxing.BarcodeFormat_QR_CODE {
		bl, tl, tr := raw[0], raw[1], raw[2]
		br := tr.add(bl).sub(tl)
		if moduleSize > 0 {
			e := finderCenterInset * moduleSize
			u := tr.sub(tl).unit().scale(e)
			v := bl.sub(tl).unit().scale(e)
			tl = tl.sub(u).sub(v)
			tr = tr.add(u).sub(v)
			br = br.add(u).add(v)
			bl = bl.sub(u).add(v)
		}
		raw = []vec{tl, tr, br, bl}
	}

	pts := make([]entity.Point, len(raw))
	for i, p := range raw {
		pts[i] = p.round()
	}
	pts = orderAroundCentroid(pts)

	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return clampPoints(pts, bounds), entity.RectFrom(image.Rect(minX, minY, maxX, maxY).Intersect(bounds))
}

func pointsBounds(points []gozxing.ResultPoint) image.Rectangle {
	var r image.Rectangle
	first := true
	for _, p := range points {
		if p == nil {
			continue
		}
		pt := vec{p.GetX(), p.GetY()}.round()
		if first {
			r = image.Rect(pt.X, pt.Y, pt.X, pt.Y)
			first = false
			continue
		}
		r.Min.X, r.Min.Y = min(r.Min.X, pt.X), min(r.Min.Y, pt.Y)
		r.Max.X, r.Max.Y = max(r.Max.X, pt.X), max(r.Max.Y, pt.Y)
	}
	return r
}

func allInside(points []gozxing.ResultPoint, r image.Rectangle) bool {
	for _, p := range points {
		if p == nil {
			continue
		}
		q := vec{p.GetX(), p.GetY()}.round()
		if !image.Pt(q.X, q.Y).In(r.Inset(-1)) {
			return false
		}
	}
	return true
}

func corners(r image.Rectangle) []entity.Point {
	return []entity.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Max.Y},
		{X: r.Min.X, Y: r.Max.Y},
	}
}

// clampPoints прижимает точки к последнему пикселю bounds
func clampPoints(pts []entity.Point, bounds image.Rectangle) []entity.Point {
	for i, p := range pts {
		pts[i] = entity.Point{
			X: max(bounds.Min.X, min(p.X, bounds.Max.X-1)),
			Y: max(bounds.Min.Y, min(p.Y, bounds.Max.Y-1)),
		}
	}
	return pts
}

// orderAroundCentroid упорядочивает точки по углу вокруг центра масс,
// чтобы ломаная не пересекала сама себя
func orderAroundCentroid(pts []entity.Point) []entity.Point {
	var cx, cy float64
	for _, p := range pts {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))

	out := append([]entity.Point(nil), pts...)
	sort.SliceStable(out, func(i, j int) bool {
		ai := math.Atan2(float64(out[i].Y)-cy, float64(out[i].X)-cx)
		aj := math.Atan2(float64(out[j].Y)-cy, float64(out[j].X)-cx)
		return ai < aj
	})
	return out
}

type vec struct{ x, y float64 }

func (a vec) add(b vec) vec { return vec{a.x + b.x, a.y + b.y} }

func (a vec) sub(b vec) vec { return vec{a.x - b.x, a.y - b.y} }

func (a vec) scale(k float64) vec { return vec{a.x * k, a.y * k} }

func (a vec) round() entity.Point {
	return entity.Point{X: int(math.Round(a.x)), Y: int(math.Round(a.y))}
}

func (a vec) unit() vec {
	n := math.Hypot(a.x, a.y)
	if n == 0 {
		return vec{}
	}
	return vec{a.x / n, a.y / n}
}
