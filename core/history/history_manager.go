package history

import (
	"calcpad/core/persistence"
	"calcpad/models"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// StorageKey - ключ, под которым хранится вся история
const StorageKey = "calculator_history_v1"

// ErrIndexOutOfRange - удаление несуществующей записи
var ErrIndexOutOfRange = errors.New("history index out of range")

// HistoryManager - упорядоченный список вычислений поверх плоского хранилища.
// Каждое изменение - чтение, правка и запись одной записи целиком.
type HistoryManager struct {
	mu         sync.Mutex
	store      persistence.Store
	maxHistory int
}

func NewHistoryManager(store persistence.Store) *HistoryManager {
	return &HistoryManager{
		store:      store,
		maxHistory: 100,
	}
}

// NewHistoryManagerWithLimit - limit <= 0 означает историю без ограничений
func NewHistoryManagerWithLimit(store persistence.Store, maxHistory int) *HistoryManager {
	return &HistoryManager{
		store:      store,
		maxHistory: maxHistory,
	}
}

// Add - добавление записи в конец истории
func (hm *HistoryManager) Add(entry models.HistoryEntry) error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	entries, err := hm.load()
	if err != nil {
		return err
	}

	entries = append(entries, entry)

	// Ограничиваем размер истории
	if hm.maxHistory > 0 && len(entries) > hm.maxHistory {
		entries = entries[len(entries)-hm.maxHistory:]
	}

	return hm.save(entries)
}

// List - вся история, от старых записей к новым
func (hm *HistoryManager) List() ([]models.HistoryEntry, error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.load()
}

// Recent - последние limit записей, новые первыми (как в панели истории)
func (hm *HistoryManager) Recent(limit int) ([]models.HistoryEntry, error) {
	entries, err := hm.List()
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}

	recent := make([]models.HistoryEntry, 0, limit)
	for i := len(entries) - 1; i >= len(entries)-limit; i-- {
		recent = append(recent, entries[i])
	}
	return recent, nil
}

// Get - запись по индексу в порядке хранения
func (hm *HistoryManager) Get(index int) (models.HistoryEntry, error) {
	entries, err := hm.List()
	if err != nil {
		return models.HistoryEntry{}, err
	}
	if index < 0 || index >= len(entries) {
		return models.HistoryEntry{}, fmt.Errorf("get %d of %d: %w", index, len(entries), ErrIndexOutOfRange)
	}
	return entries[index], nil
}

// Delete - удаление записи по индексу в порядке хранения
func (hm *HistoryManager) Delete(index int) error {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	entries, err := hm.load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("delete %d of %d: %w", index, len(entries), ErrIndexOutOfRange)
	}

	entries = append(entries[:index], entries[index+1:]...)
	return hm.save(entries)
}

// Clear - очистка всей истории
func (hm *HistoryManager) Clear() error {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return hm.save([]models.HistoryEntry{})
}

// Count - количество записей в истории
func (hm *HistoryManager) Count() (int, error) {
	entries, err := hm.List()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Search - поиск по выражению и результату без учета регистра
func (hm *HistoryManager) Search(keyword string) ([]models.HistoryEntry, error) {
	entries, err := hm.List()
	if err != nil {
		return nil, err
	}

	keyword = strings.ToLower(keyword)
	results := make([]models.HistoryEntry, 0)
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Expression), keyword) ||
			strings.Contains(strings.ToLower(entry.Result), keyword) {
			results = append(results, entry)
		}
	}
	return results, nil
}

// load - отсутствие записи равно пустой истории
func (hm *HistoryManager) load() ([]models.HistoryEntry, error) {
	raw, ok, err := hm.store.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	entries := make([]models.HistoryEntry, 0)
	if !ok {
		return entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return entries, nil
}

func (hm *HistoryManager) save(entries []models.HistoryEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := hm.store.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}
