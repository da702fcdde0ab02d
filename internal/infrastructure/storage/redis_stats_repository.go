package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// RedisStatsRepository общая статистика для нескольких экземпляров сервиса
type RedisStatsRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisStatsRepository подключается к Redis по URL и проверяет соединение
func NewRedisStatsRepository(ctx context.Context, redisURL, prefix string) (*RedisStatsRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStatsRepository{client: client, prefix: prefix}, nil
}

func (r *RedisStatsRepository) key(name string) string {
	return r.prefix + ":" + name
}

// lastScanScript обновляет время последнего сканирования (микросекунды) только вперёд
var lastScanScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local at = tonumber(ARGV[1])
if at > cur then
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (r *RedisStatsRepository) Record(ctx context.Context, codes int, at time.Time) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, r.key("scans"))
	pipe.IncrBy(ctx, r.key("codes"), int64(codes))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record scan: %w", err)
	}

	if err := lastScanScript.Run(ctx, r.client, []string{r.key("last_scan")}, at.UnixMicro()).Err(); err != nil {
		return fmt.Errorf("record last scan: %w", err)
	}
	return nil
}

func (r *RedisStatsRepository) Get(ctx context.Context) (entity.ScanStats, error) {
	vals, err := r.client.MGet(ctx, r.key("scans"), r.key("codes"), r.key("last_scan")).Result()
	if err != nil {
		return entity.ScanStats{}, fmt.Errorf("get stats: %w", err)
	}

	nums := make([]int64, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return entity.ScanStats{}, errors.New("unexpected stats value type")
		}
		if nums[i], err = strconv.ParseInt(s, 10, 64); err != nil {
			return entity.ScanStats{}, fmt.Errorf("parse stats value: %w", err)
		}
	}

	stats := entity.ScanStats{TotalScans: nums[0], TotalCodes: nums[1]}
	if nums[2] > 0 {
		stats.LastScanAt = time.UnixMicro(nums[2]).UTC()
	}
	return stats, nil
}

// Close закрывает соединение
func (r *RedisStatsRepository) Close() error {
	return r.client.Close()
}

var _ port.StatsRepository = (*RedisStatsRepository)(nil)
