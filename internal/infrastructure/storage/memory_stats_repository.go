package storage

import (
	"context"
	"sync"
	"time"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// MemoryStatsRepository счётчик сканирований в памяти процесса
type MemoryStatsRepository struct {
	mu    sync.Mutex
	stats entity.ScanStats
}

func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{}
}

func (r *MemoryStatsRepository) Record(ctx context.Context, codes int, at time.Time) error {
	r.mu.Lock()
	r.stats.Apply(codes, at)
	r.mu.Unlock()
	return nil
}

func (r *MemoryStatsRepository) Get(ctx context.Context) (entity.ScanStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats, nil
}

var _ port.StatsRepository = (*MemoryStatsRepository)(nil)
