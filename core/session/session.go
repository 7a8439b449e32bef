package session

import (
	"calcpad/core/engine"
	"calcpad/core/history"
	"calcpad/core/symbols"
	"calcpad/logger"
	"calcpad/metrics"
	"calcpad/models"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTTL = 24 * time.Hour

// InvalidExpressionMessage - текст уведомления об ошибке вычисления
const InvalidExpressionMessage = "Invalid expression"

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
)

// InputResult - ответ на нажатие кнопки
type InputResult struct {
	Display models.Display `json:"display"`
	Error   string         `json:"error,omitempty"`
}

// Session - одна вкладка браузера со своим дисплеем.
// mu сериализует ввод: движок рассчитан на одного владельца.
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`

	mu       sync.Mutex
	engine   *engine.Engine
	lastErr  error
	lastSeen time.Time

	clientsMu sync.Mutex
	clients   map[*client]struct{}
}

// Manager - реестр сессий и общая история
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	history  *history.HistoryManager
	secret   []byte
	log      *logger.Logger

	// historyWatched - рассылку истории делает наблюдатель за файлом
	historyWatched atomic.Bool
}

func NewManager(h *history.HistoryManager, secret string) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		history:  h,
		secret:   []byte(secret),
		log:      logger.Global().WithPrefix("session"),
	}
}

// SetHistoryWatched отключает рассылку истории после каждого вычисления,
// когда изменения файла истории уже доставляет persistence.Watch
func (m *Manager) SetHistoryWatched(watched bool) {
	m.historyWatched.Store(watched)
}

// History - общая история всех сессий
func (m *Manager) History() *history.HistoryManager {
	return m.history
}

// Create - новая сессия и подписанный токен для нее
func (m *Manager) Create() (*Session, string, error) {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		lastSeen:  time.Now(),
		clients:   make(map[*client]struct{}),
	}
	s.engine = engine.NewEngine(
		func(entry models.HistoryEntry) { m.recordHistory(entry) },
		func(err error) {
			s.lastErr = err
		},
	)

	token, err := m.createToken(s.ID)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	m.log.Info("session created: %s", s.ID)
	return s, token, nil
}

// Verify - сессия по токену
func (m *Manager) Verify(tokenString string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	m.mu.RLock()
	s, ok := m.sessions[claims.Subject]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove - удаление сессии и закрытие ее соединений
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	s.closeClients()
	metrics.ActiveSessions.Set(float64(count))
	m.log.Info("session removed: %s", id)
}

// Prune удаляет сессии без соединений, простаивающие дольше maxIdle
func (m *Manager) Prune(maxIdle time.Duration) int {
	var stale []string

	m.mu.RLock()
	for id, s := range m.sessions {
		if s.idleFor() > maxIdle && s.clientCount() == 0 {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	return len(stale)
}

// Count - число активных сессий
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Input передает нажатие движку сессии и рассылает новый дисплей
func (m *Manager) Input(s *Session, category, value string) InputResult {
	result := s.input(category, value)

	label := "unknown"
	if c, ok := symbols.ParseCategory(category); ok {
		label = string(c)
	}
	metrics.KeyPresses.WithLabelValues(label).Inc()
	if label == string(symbols.UnaryFunction) && value == symbols.Equals {
		outcome := "success"
		if result.Error != "" {
			outcome = "error"
		}
		metrics.Evaluations.WithLabelValues(outcome).Inc()
	}

	s.broadcast(Event{Event: EventDisplay, Data: result})
	if result.Error != "" {
		s.broadcast(Event{Event: EventError, Data: result.Error})
	}
	return result
}

// Restore загружает результат записи истории в дисплей сессии
func (m *Manager) Restore(s *Session, index int) (models.Display, error) {
	entry, err := m.history.Get(index)
	if err != nil {
		return models.Display{}, err
	}

	s.mu.Lock()
	err = s.engine.Restore(entry.Result)
	display := s.engine.Snapshot()
	s.mu.Unlock()
	if err != nil {
		return models.Display{}, err
	}

	s.broadcast(Event{Event: EventDisplay, Data: InputResult{Display: display}})
	return display, nil
}

// Snapshot - текущий дисплей сессии
func (s *Session) Snapshot() models.Display {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// NotifyHistoryChanged рассылает всем сессиям актуальную историю
func (m *Manager) NotifyHistoryChanged() {
	entries, err := m.history.List()
	if err != nil {
		m.log.Error("failed to load history: %v", err)
		return
	}
	metrics.UpdateHistorySize(len(entries))

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.broadcast(Event{Event: EventHistory, Data: entries})
	}
}

func (m *Manager) recordHistory(entry models.HistoryEntry) {
	if err := m.history.Add(entry); err != nil {
		m.log.Error("failed to save history entry %q: %v", entry.Expression, err)
		return
	}
	if !m.historyWatched.Load() {
		go m.NotifyHistoryChanged()
	}
}

func (m *Manager) createToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

func (s *Session) input(category, value string) InputResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	s.lastErr = nil

	if c, ok := symbols.ParseCategory(category); ok {
		s.engine.Input(c, value)
	}

	result := InputResult{Display: s.engine.Snapshot()}
	if s.lastErr != nil {
		result.Error = InvalidExpressionMessage
	}
	return result
}

func (s *Session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}
