package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricare/backend/internal/service/turn/turntest"
)

type frame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data"`
}

func dial(t *testing.T, server *httptest.Server, sessionID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + sessionID
	return websocket.DefaultDialer.Dial(url, nil)
}

func setup(t *testing.T) (*httptest.Server, string) {
	svc, _ := turntest.New(t, "I'm here for you.")
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, turntest.Session(t, svc)
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketTurn(t *testing.T) {
	server, sessionID := setup(t)

	conn, _, err := dial(t, server, sessionID)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "connected", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "turn", "text": "I feel so worried about the loan"}))
	reply := read(t, conn)
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, "sad", reply.Data["emotion"])
	assert.Equal(t, false, reply.Data["emergencyFired"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "checkin", "mood": "okay"}))
	assert.Equal(t, "reply", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "audio"}))
	assert.Equal(t, "error", read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "turn", "text": " "}))
	assert.Equal(t, "error", read(t, conn).Type)
}

func TestWebSocketUnknownSession(t *testing.T) {
	server, _ := setup(t)

	_, resp, err := dial(t, server, "missing")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
