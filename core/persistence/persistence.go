package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store - плоское хранилище ключ-значение (аналог localStorage).
// Значения - JSON-документы.
type Store interface {
	// Get возвращает значение и false, если ключа нет
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// ErrInvalidValue - значение не является JSON-документом
var ErrInvalidValue = errors.New("value is not a JSON document")

// FileStore хранит все ключи в одном JSON файле
type FileStore struct {
	mu       sync.Mutex
	dataFile string
}

func NewFileStore(dataFile string) *FileStore {
	return &FileStore{
		dataFile: dataFile,
	}
}

// Path - путь к файлу данных
func (fs *FileStore) Path() string {
	return fs.dataFile
}

func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return nil, false, err
	}
	value, ok := data[key]
	return []byte(value), ok, nil
}

func (fs *FileStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %q: %w", key, ErrInvalidValue)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return err
	}
	data[key] = json.RawMessage(value)
	return fs.save(data)
}

func (fs *FileStore) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return fs.save(data)
}

func (fs *FileStore) Close() error {
	return nil
}

// load - чтение файла; отсутствующий файл равен пустому хранилищу
func (fs *FileStore) load() (map[string]json.RawMessage, error) {
	data := make(map[string]json.RawMessage)

	content, err := os.ReadFile(fs.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("reading %s: %w", fs.dataFile, err)
	}
	if len(content) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fs.dataFile, err)
	}
	return data, nil
}

// save - запись через временный файл и rename, чтобы читатель не увидел половину файла
func (fs *FileStore) save(data map[string]json.RawMessage) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	dir := filepath.Dir(fs.dataFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.dataFile)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, fs.dataFile); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", fs.dataFile, err)
	}
	return nil
}

// MemoryStore - хранилище в памяти для тестов и запусков без сохранения
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (ms *MemoryStore) Get(key string) ([]byte, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	value, ok := ms.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (ms *MemoryStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %q: %w", key, ErrInvalidValue)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	ms.data[key] = stored
	return nil
}

func (ms *MemoryStore) Delete(key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, key)
	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
