package port

import (
	"context"
	"io"
)

// ImageStore интерфейс хранилища обработанных изображений
type ImageStore interface {
	// Save сохраняет файл под безопасным именем и возвращает это имя
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open открывает файл по имени
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
}
