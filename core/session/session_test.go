package session

import (
	"calcpad/core/history"
	"calcpad/core/persistence"
	"calcpad/core/symbols"
	"calcpad/models"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(history.NewHistoryManager(persistence.NewMemoryStore()), "test-secret")
}

func pressAll(m *Manager, s *Session, keys ...[2]string) InputResult {
	var res InputResult
	for _, k := range keys {
		res = m.Input(s, k[0], k[1])
	}
	return res
}

func num(glyph string) [2]string {
	_, id, _ := symbols.Reverse(glyph)
	return [2]string{string(symbols.Number), id}
}
func op(id string) [2]string { return [2]string{string(symbols.BinaryOperator), id} }
func unary(id string) [2]string {
	return [2]string{string(symbols.UnaryFunction), id}
}

func TestCreateAndVerify(t *testing.T) {
	m := newTestManager(t)

	s, token, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, 1, m.Count())
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	m := newTestManager(t)
	_, token, err := m.Create()
	require.NoError(t, err)

	other := NewManager(m.History(), "another-secret")
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "whatever",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyUnknownSession(t *testing.T) {
	m := newTestManager(t)
	token, err := m.createToken("missing")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := newTestManager(t)
	a, _, err := m.Create()
	require.NoError(t, err)
	b, _, err := m.Create()
	require.NoError(t, err)

	pressAll(m, a, num("1"), num("2"))
	pressAll(m, b, num("7"))

	assert.Equal(t, "12", a.Snapshot().Text)
	assert.Equal(t, "7", b.Snapshot().Text)
}

func TestInputEvaluatesAndSavesHistory(t *testing.T) {
	m := newTestManager(t)
	s, _, err := m.Create()
	require.NoError(t, err)

	res := pressAll(m, s, num("2"), op("PLUS"), num("3"), unary(symbols.Equals))
	assert.Equal(t, "5", res.Display.Text)
	assert.True(t, res.Display.Evaluated)
	assert.Equal(t, models.AllClear, res.Display.ClearMode)
	assert.Empty(t, res.Error)

	entries, err := m.History().List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryEntry{Expression: "2+3", Result: "5"}, entries[0])
}

func TestInputReportsInvalidExpression(t *testing.T) {
	m := newTestManager(t)
	s, _, err := m.Create()
	require.NoError(t, err)

	res := pressAll(m, s, num("1"), op("DIVIDE"), num("0"), unary(symbols.Equals))
	assert.Equal(t, InvalidExpressionMessage, res.Error)
	assert.Equal(t, "0", res.Display.Text)

	// ошибка не переносится на следующее нажатие
	res = m.Input(s, string(symbols.Number), "FOUR")
	assert.Empty(t, res.Error)
	assert.Equal(t, "4", res.Display.Text)
}

func TestInputIgnoresUnknownKeys(t *testing.T) {
	m := newTestManager(t)
	s, _, err := m.Create()
	require.NoError(t, err)

	res := m.Input(s, "BOGUS", "ONE")
	assert.Equal(t, "0", res.Display.Text)
	res = m.Input(s, string(symbols.Number), "ELEVEN")
	assert.Equal(t, "0", res.Display.Text)
}

func TestRestoreFromHistory(t *testing.T) {
	m := newTestManager(t)
	s, _, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, m.History().Add(models.HistoryEntry{Expression: "6*7", Result: "42"}))

	display, err := m.Restore(s, 0)
	require.NoError(t, err)
	assert.Equal(t, "42", display.Text)
	assert.True(t, display.Evaluated)

	res := m.Input(s, string(symbols.Number), "ONE")
	assert.Equal(t, "1", res.Display.Text)

	_, err = m.Restore(s, 5)
	assert.ErrorIs(t, err, history.ErrIndexOutOfRange)
}

func TestPruneRemovesIdleSessions(t *testing.T) {
	m := newTestManager(t)
	s, _, err := m.Create()
	require.NoError(t, err)

	assert.Equal(t, 0, m.Prune(time.Hour))

	s.mu.Lock()
	s.lastSeen = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	assert.Equal(t, 1, m.Prune(time.Hour))
	assert.Equal(t, 0, m.Count())
}

func dialSession(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev rawEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Event == name {
			return ev.Data
		}
	}
}

func TestWebSocketInputRoundTrip(t *testing.T) {
	m := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	_, token, err := m.Create()
	require.NoError(t, err)
	conn := dialSession(t, srv, token)

	var initial InputResult
	require.NoError(t, json.Unmarshal(readEvent(t, conn, EventDisplay), &initial))
	assert.Equal(t, "0", initial.Display.Text)

	for _, key := range []models.KeyInput{
		{Category: "NUMBER", Value: "NINE"},
		{Category: "UNARY_FUNCTION", Value: "X_FACTORIAL"},
		{Category: "UNARY_FUNCTION", Value: "EQUALS"},
	} {
		data, err := json.Marshal(key)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(WebSocketMessage{Event: EventInput, Data: data}))
	}

	// display и history приходят в произвольном порядке
	var last InputResult
	var entries []models.HistoryEntry
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for last.Display.Text != "362880" || len(entries) == 0 {
		var ev rawEvent
		require.NoError(t, conn.ReadJSON(&ev))
		switch ev.Event {
		case EventDisplay:
			require.NoError(t, json.Unmarshal(ev.Data, &last))
		case EventHistory:
			require.NoError(t, json.Unmarshal(ev.Data, &entries))
		}
	}
	assert.True(t, last.Display.Evaluated)
	assert.Equal(t, "9!", entries[0].Expression)
	assert.Equal(t, "362880", entries[0].Result)
}

func TestWebSocketRequiresToken(t *testing.T) {
	m := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws?token=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRemovedSession(t *testing.T) {
	m := newTestManager(t)
	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	s, token, err := m.Create()
	require.NoError(t, err)
	m.Remove(s.ID)

	resp, err := http.Get(srv.URL + "/ws?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchedHistoryBroadcastsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calculator_data.json")
	m := NewManager(history.NewHistoryManager(persistence.NewFileStore(path)), "test-secret")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, persistence.Watch(ctx, path, m.NotifyHistoryChanged))
	m.SetHistoryWatched(true)

	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	defer srv.Close()

	s, token, err := m.Create()
	require.NoError(t, err)
	conn := dialSession(t, srv, token)
	readEvent(t, conn, EventDisplay)
	readEvent(t, conn, EventHistory)

	pressAll(m, s, num("6"), op("MULTIPLY"), num("7"), unary(symbols.Equals))

	// считаем непустые рассылки истории, пока канал не затихнет
	updates := 0
	for {
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		var ev rawEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		if ev.Event != EventHistory {
			continue
		}
		var entries []models.HistoryEntry
		require.NoError(t, json.Unmarshal(ev.Data, &entries))
		if len(entries) > 0 {
			updates++
		}
	}
	assert.Equal(t, 1, updates)
}
