// Package http HTTP-интерфейс сканера: загрузка изображения, выдача результата,
// статистика.
package http

import (
	_ "embed"
	"net/http"

	"github.com/gorilla/mux"
)

//go:embed static/index.html
var indexHTML []byte

// NewRouter собирает маршруты и оборачивает их CORS
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/decode", h.Decode).Methods("POST")
	r.HandleFunc("/uploads/{filename}", h.Upload).Methods("GET")
	r.HandleFunc("/stats", h.Stats).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	return corsMiddleware(r)
}

// corsMiddleware добавляет CORS заголовки
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
