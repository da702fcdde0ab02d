package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/port"
)

// FileImageStore хранит файлы в каталоге загрузок
type FileImageStore struct {
	dir string
}

// NewFileImageStore создаёт каталог, если его нет
func NewFileImageStore(dir string) (*FileImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileImageStore{dir: dir}, nil
}

// Dir каталог хранилища
func (s *FileImageStore) Dir() string {
	return s.dir
}

// Save записывает данные атомарно: сначала во временный файл, потом rename
func (s *FileImageStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, safe)); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return safe, nil
}

// Open открывает файл по имени; имя проходит ту же очистку, что и при сохранении
func (s *FileImageStore) Open(ctx context.Context, name string) (io.ReadSeekCloser, error) {
	safe := SecureFilename(name)
	if safe == "" {
		return nil, apperrors.NewNotFound("File")
	}
	f, err := os.Open(filepath.Join(s.dir, safe))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFound("File")
		}
		return nil, err
	}
	if info, err := f.Stat(); err != nil || info.IsDir() {
		f.Close()
		return nil, apperrors.NewNotFound("File")
	}
	return f, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename приводит имя файла к безопасному виду: NFKD и только ASCII,
// разделители путей становятся пробелами, пробелы схлопываются в "_",
// всё кроме [A-Za-z0-9_.-] удаляется, ведущие и хвостовые "._" срезаются.
func SecureFilename(name string) string {
	var sb strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < 128 {
			sb.WriteRune(r)
		}
	}
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(sb.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

var _ port.ImageStore = (*FileImageStore)(nil)
