package models

// HistoryEntry представляет одно успешное вычисление
type HistoryEntry struct {
	Expression string `json:"expression"`
	Result     string `json:"result"`
}

// ClearMode - режим кнопки очистки
type ClearMode string

const (
	AllClear   ClearMode = "AC"
	ClearEntry ClearMode = "CE"
)

// Display представляет то, что видит пользователь на экране калькулятора
type Display struct {
	Text      string    `json:"text"`
	ClearMode ClearMode `json:"clearMode"`
	Evaluated bool      `json:"evaluated"`
}

// KeyInput представляет нажатие кнопки
type KeyInput struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}
