package router

import (
	"net/http"
	"time"

	"brew-planner/internal/pkg/common"

	"go.uber.org/zap"
)

// responseWriter 響應記錄器
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader 實現 http.ResponseWriter 介面
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Wrap 伺服器最外層處理器：攔截 gin 之外的 panic 並記錄慢請求
func Wrap(next http.Handler, slow time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		defer func() {
			if err := recover(); err != nil {
				common.LogError("Server panic recovered",
					zap.Any("error", err),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if elapsed := time.Since(start); slow > 0 && elapsed > slow {
				common.LogWarn("Slow request",
					zap.String("path", r.URL.Path),
					zap.Int("status", rw.statusCode),
					zap.Duration("latency", elapsed),
				)
			}
		}()

		next.ServeHTTP(rw, r)
	})
}
