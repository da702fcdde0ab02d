package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "code-scanner/internal/application"
	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
	"code-scanner/internal/logging"
)

// Scanner то, что обработчику нужно от сервиса сканирования
type Scanner interface {
	ScanUpload(ctx context.Context, filename string, data []byte) (*entity.ScanResult, error)
	Stats(ctx context.Context) (entity.ScanStats, error)
}

// DecodeResponse ответ POST /decode
type DecodeResponse struct {
	Results        []entity.Detection `json:"results"`
	ProcessedImage string             `json:"processed_image"`
}

type Handler struct {
	scanner  Scanner
	images   port.ImageStore
	maxBytes int64
	log      *logging.Logger
}

func NewHandler(scanner Scanner, images port.ImageStore, maxBytes int64, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		scanner:  scanner,
		images:   images,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Decode обрабатывает POST /decode
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBytes {
		respondError(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "No file part", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		// часть без имени файла multipart кладёт в обычные значения формы
		if _, ok := r.MultipartForm.Value["file"]; ok {
			respondError(w, "No selected file", http.StatusBadRequest)
			return
		}
		respondError(w, "No file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		respondError(w, "No selected file", http.StatusBadRequest)
		return
	}
	if !app.AllowedFile(header.Filename) {
		respondError(w, "Invalid file type", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	started := time.Now()
	result, err := h.scanner.ScanUpload(r.Context(), header.Filename, data)
	if err != nil {
		h.log.Error("decode failed", "filename", header.Filename, "code", apperrors.CodeOf(err), "error", err)
		respondError(w, apperrors.MessageOf(err), apperrors.HTTPStatus(err))
		return
	}

	h.log.Info("image decoded",
		"filename", header.Filename,
		"codes", len(result.Detections),
		"processed_image", result.ProcessedImage,
		"duration", time.Since(started))

	respondJSON(w, DecodeResponse{
		Results:        result.Detections,
		ProcessedImage: result.ProcessedImage,
	}, http.StatusOK)
}

// Upload отдаёт сохранённое изображение с разметкой
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	f, err := h.images.Open(r.Context(), name)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			h.log.Error("failed to open upload", "filename", name, "error", err)
		}
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, name, time.Time{}, f)
}

// Stats отдаёт статистику сканирований
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scanner.Stats(r.Context())
	if err != nil {
		h.log.Error("failed to load stats", "error", err)
		respondError(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// Health проверка здоровья сервиса
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Index страница загрузки
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
