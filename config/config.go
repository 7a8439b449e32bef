package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	Addr         string
	Storage      string
	DataFile     string
	DBFile       string
	HistoryLimit int
	Secret       string
	OpenBrowser  bool
	LogLevel     string
	LogFile      string
	StaticDir    string
	KeypadMode   string
}

func Load() *Config {
	// Загрузка .env файла
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to read .env file: %v", err)
	}

	return &Config{
		Addr:         getEnv("CALC_ADDR", ":8080"),
		Storage:      getEnv("CALC_STORAGE", StorageFile),
		DataFile:     getEnv("CALC_DATA_FILE", "calculator_data.json"),
		DBFile:       getEnv("CALC_DB_FILE", "calculator.db"),
		HistoryLimit: getEnvAsInt("CALC_HISTORY_LIMIT", 100),
		Secret:       getEnv("CALC_SECRET", "change-me-calcpad-secret"),
		OpenBrowser:  getEnvAsBool("CALC_OPEN_BROWSER", true),
		LogLevel:     getEnv("CALC_LOG_LEVEL", "info"),
		LogFile:      getEnv("CALC_LOG_FILE", ""),
		StaticDir:    getEnv("CALC_STATIC_DIR", ""),
		KeypadMode:   getEnv("CALC_KEYPAD_MODE", "BASIC"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
