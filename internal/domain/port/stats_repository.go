package port

import (
	"context"
	"time"

	"code-scanner/internal/domain/entity"
)

// StatsRepository интерфейс хранилища статистики сканирований
type StatsRepository interface {
	// Record учитывает одно сканирование с указанным числом кодов
	Record(ctx context.Context, codes int, at time.Time) error

	// Get возвращает накопленную статистику
	Get(ctx context.Context) (entity.ScanStats, error)
}
