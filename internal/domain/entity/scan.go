package entity

import (
	"image"
	"time"
)

// ScanResult итог обработки одного изображения
type ScanResult struct {
	Detections     []Detection
	Width          int         // ширина исходного изображения
	Height         int         // высота исходного изображения
	Image          image.Image // кадр с нарисованными контурами
	Annotated      []byte      // тот же кадр, закодированный для отдачи
	ProcessedImage string      // имя сохранённого файла, если сохранялся
}

// HasCodes флаг наличия распознанных кодов
func (r *ScanResult) HasCodes() bool {
	return r != nil && len(r.Detections) > 0
}

// ScanStats статистика сканирований
type ScanStats struct {
	TotalScans int64     `json:"total_scans"`
	TotalCodes int64     `json:"total_codes"`
	LastScanAt time.Time `json:"last_scan_at"`
}

// Apply учитывает одно сканирование
func (s *ScanStats) Apply(codes int, at time.Time) {
	s.TotalScans++
	s.TotalCodes += int64(codes)
	if at.After(s.LastScanAt) {
		s.LastScanAt = at
	}
}
