package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castfund/backend/internal/events"
	"github.com/castfund/backend/internal/services"
)

type sseFrame struct {
	ID    string
	Event string
	Data  string
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.Event != "" {
				return f
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			f.ID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestWriteSSE_Golden(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))

	tests := []struct {
		name  string
		event events.Event
	}{
		{
			name: "sse_connected",
			event: events.Event{
				ID: "evt-0", Type: events.Connected, At: at,
				Keys: events.Keys{Accounts: []string{"alice"}},
				Data: ConnectedPayload{ConnectionID: "conn-1"},
			},
		},
		{
			name: "sse_balance_updated",
			event: events.Event{
				ID: "evt-1", Type: events.BalanceUpdated, At: at,
				Keys: events.Keys{Accounts: []string{"alice"}},
				Data: services.BalancePayload{AccountID: "alice", Balance: 250, Reputation: 3},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeSSE(&buf, tt.event))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestEventsHandler_SSE(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/subscribe?user=alice", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	r := bufio.NewReader(resp.Body)

	first := readFrame(t, r)
	require.Equal(t, string(events.Connected), first.Event)
	var connected struct {
		Data ConnectedPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(first.Data), &connected))
	require.NotEmpty(t, connected.Data.ConnectionID)
	assert.Equal(t, 1, env.dispatcher.Len())

	t.Run("own account events arrive", func(t *testing.T) {
		env.fund(t, "alice", 40)
		f := readFrame(t, r)
		assert.Equal(t, string(events.BalanceUpdated), f.Event)
		assert.Contains(t, f.Data, `"balance":40`)
	})

	t.Run("watched episode events arrive", func(t *testing.T) {
		ep := env.episode(t, "author", 100)

		w := env.do(t, http.MethodPost, "/api/v1/events/"+connected.Data.ConnectionID+"/watch", "mallory",
			map[string]any{"episodeIds": []string{ep.ID}})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, http.MethodPost, "/api/v1/events/"+connected.Data.ConnectionID+"/watch", "alice",
			map[string]any{"episodeIds": []string{ep.ID}})
		require.Equal(t, http.StatusNoContent, w.Code)

		env.fund(t, "fan", 10)
		w = env.do(t, http.MethodPost, "/api/v1/videos/vote", "fan", map[string]any{"episodeId": ep.ID, "amount": 10})
		require.Equal(t, http.StatusOK, w.Code)

		f := readFrame(t, r)
		assert.Equal(t, string(events.VideoStatusUpdated), f.Event)
		assert.Contains(t, f.Data, ep.ID)
	})

	t.Run("logout reaches the stream", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/events/logout", "alice", nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, string(events.UserLogout), readFrame(t, r).Event)
	})

	cancel()
	assert.Eventually(t, func() bool { return env.dispatcher.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventsHandler_WebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?user=bob"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var e events.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.Connected, e.Type)
	assert.Equal(t, []string{"bob"}, e.Keys.Accounts)

	env.fund(t, "bob", 15)
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.BalanceUpdated, e.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return env.dispatcher.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEventsHandler_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/events/subscribe", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
