package ui

import (
	"calcpad/core/history"
	"calcpad/core/session"
	"calcpad/core/symbols"
	"calcpad/logger"
	"calcpad/metrics"
	"calcpad/models"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

//go:embed static
var staticFiles embed.FS

const (
	sessionIdleTimeout = 2 * time.Hour
	pruneInterval      = 10 * time.Minute
)

type WebInterface struct {
	sessions *session.Manager
	router   *httprouter.Router
	static   http.FileSystem
	log      *logger.Logger
}

// HistoryItem - запись истории с индексом хранения для удаления и восстановления
type HistoryItem struct {
	Index int `json:"index"`
	models.HistoryEntry
}

// NewWebInterface собирает маршруты. Пустой staticDir - встроенная страница.
func NewWebInterface(m *session.Manager, staticDir string) *WebInterface {
	w := &WebInterface{
		sessions: m,
		router:   httprouter.New(),
		log:      logger.Global().WithPrefix("web"),
	}

	if staticDir != "" {
		w.static = http.Dir(staticDir)
	} else {
		sub, _ := fs.Sub(staticFiles, "static")
		w.static = http.FS(sub)
	}

	w.setupRoutes()
	return w
}

func (w *WebInterface) setupRoutes() {
	w.handle(http.MethodPost, "/api/session", w.handleCreateSession)
	w.handle(http.MethodPost, "/api/input", w.handleInput)
	w.handle(http.MethodGet, "/api/history", w.handleHistory)
	w.handle(http.MethodDelete, "/api/history", w.handleClearHistory)
	w.handle(http.MethodDelete, "/api/history/:index", w.handleDeleteHistory)
	w.handle(http.MethodPost, "/api/history/:index/restore", w.handleRestoreHistory)
	w.handle(http.MethodGet, "/api/keypad/:mode", w.handleKeypad)

	w.router.HandlerFunc(http.MethodGet, "/ws", w.sessions.HandleWebSocket)

	// Prometheus metrics endpoint
	w.router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	// Health check endpoint
	w.router.GET("/health", func(wr http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		wr.WriteHeader(http.StatusOK)
		wr.Write([]byte("OK"))
	})

	// Static files
	w.router.NotFound = http.FileServer(w.static)
}

// handle регистрирует маршрут с метриками по шаблону пути
func (w *WebInterface) handle(method, path string, h httprouter.Handle) {
	w.router.Handle(method, path, metricsMiddleware(path, h))
}

// Middleware для метрик
func metricsMiddleware(endpoint string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()

		// Wrapper для захвата статус кода
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(wrapped, r, ps)

		duration := time.Since(start).Seconds()

		metrics.HttpRequestsTotal.WithLabelValues(
			r.Method,
			endpoint,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		metrics.HttpRequestDuration.WithLabelValues(
			r.Method,
			endpoint,
		).Observe(duration)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler - маршрутизатор, обернутый в CORS
func (w *WebInterface) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(w.router)
}

// Start слушает addr до отмены ctx
func (w *WebInterface) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: w.Handler(),
	}

	go w.pruneSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		w.log.Info("listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (w *WebInterface) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.sessions.Prune(sessionIdleTimeout); n > 0 {
				w.log.Info("pruned %d idle sessions", n)
			}
		}
	}
}

func (w *WebInterface) handleCreateSession(wr http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s, token, err := w.sessions.Create()
	if err != nil {
		w.log.Error("failed to create session: %v", err)
		writeError(wr, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(wr, http.StatusCreated, map[string]interface{}{
		"token":     token,
		"sessionId": s.ID,
		"display":   s.Snapshot(),
	})
}

func (w *WebInterface) handleInput(wr http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s, ok := w.authenticate(wr, r)
	if !ok {
		return
	}

	var key models.KeyInput
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		writeError(wr, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(wr, http.StatusOK, w.sessions.Input(s, key.Category, key.Value))
}

// handleHistory - история новыми записями вперед, ?limit=N ограничивает размер
func (w *WebInterface) handleHistory(wr http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries, err := w.sessions.History().List()
	if err != nil {
		w.log.Error("failed to load history: %v", err)
		writeError(wr, http.StatusInternalServerError, "failed to load history")
		return
	}

	limit := len(entries)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(wr, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < limit {
			limit = n
		}
	}

	items := make([]HistoryItem, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		items = append(items, HistoryItem{Index: i, HistoryEntry: entries[i]})
	}
	metrics.UpdateHistorySize(len(entries))
	writeJSON(wr, http.StatusOK, items)
}

func (w *WebInterface) handleClearHistory(wr http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if err := w.sessions.History().Clear(); err != nil {
		w.log.Error("failed to clear history: %v", err)
		writeError(wr, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.sessions.NotifyHistoryChanged()
	wr.WriteHeader(http.StatusNoContent)
}

func (w *WebInterface) handleDeleteHistory(wr http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	index, ok := parseIndex(wr, ps)
	if !ok {
		return
	}

	if err := w.sessions.History().Delete(index); err != nil {
		writeHistoryError(wr, err)
		return
	}
	w.sessions.NotifyHistoryChanged()
	wr.WriteHeader(http.StatusNoContent)
}

func (w *WebInterface) handleRestoreHistory(wr http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s, ok := w.authenticate(wr, r)
	if !ok {
		return
	}
	index, ok := parseIndex(wr, ps)
	if !ok {
		return
	}

	display, err := w.sessions.Restore(s, index)
	if err != nil {
		writeHistoryError(wr, err)
		return
	}
	writeJSON(wr, http.StatusOK, session.InputResult{Display: display})
}

func (w *WebInterface) handleKeypad(wr http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	mode, ok := symbols.ParseMode(ps.ByName("mode"))
	if !ok {
		writeError(wr, http.StatusNotFound, "unknown keypad mode")
		return
	}
	writeJSON(wr, http.StatusOK, symbols.Keypad(mode))
}

// authenticate - сессия из заголовка Authorization: Bearer <token>
func (w *WebInterface) authenticate(wr http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || token == authHeader {
		writeError(wr, http.StatusUnauthorized, "Authorization required")
		return nil, false
	}

	s, err := w.sessions.Verify(token)
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(wr, http.StatusNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		writeError(wr, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return s, true
}

func parseIndex(wr http.ResponseWriter, ps httprouter.Params) (int, bool) {
	index, err := strconv.Atoi(ps.ByName("index"))
	if err != nil {
		writeError(wr, http.StatusBadRequest, "invalid history index")
		return 0, false
	}
	return index, true
}

func writeHistoryError(wr http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrIndexOutOfRange) {
		writeError(wr, http.StatusNotFound, err.Error())
		return
	}
	writeError(wr, http.StatusInternalServerError, err.Error())
}

func writeJSON(wr http.ResponseWriter, status int, v interface{}) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	json.NewEncoder(wr).Encode(v)
}

func writeError(wr http.ResponseWriter, status int, message string) {
	writeJSON(wr, status, map[string]string{"error": message})
}
