package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/core"
	"github.com/dkeye/Babel/internal/translate"
)

type envelope map[string]any

func startServer(t *testing.T, rate config.RateConfig) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	return startServerWith(t, rate, translate.NewChain(time.Second, translate.Echo{Tag: true}))
}

func startServerWith(t *testing.T, rate config.RateConfig, tr orch.Translator) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := &orch.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.SimplePolicy{},
		Cache:      translate.NewCache(100, time.Hour),
		Translator: tr,
	}
	ctl := NewSignalWSController(o, config.WSConfig{
		ReadLimit:  4096,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
	}, rate)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg envelope) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

// expect reads until a message of the given type arrives.
func expect(t *testing.T, ws *websocket.Conn, typ string) envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var m envelope
		require.NoError(t, json.Unmarshal(data, &m))
		if m["type"] == typ {
			return m
		}
	}
}

func TestRelayOverWebsocket(t *testing.T) {
	srv, o := startServer(t, config.RateConfig{Limit: 30, Interval: 10 * time.Second})
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, envelope{"type": "join-room", "roomId": "abc123", "displayName": "Alice", "language": "en"})
	joined := expect(t, alice, core.TypeRoomJoined)
	assert.Equal(t, "ABC123", joined["roomId"])

	send(t, bob, envelope{"type": "join-room", "roomId": "ABC123", "displayName": "Bob", "language": "es"})
	joined = expect(t, bob, core.TypeRoomJoined)
	assert.Len(t, joined["members"], 2)

	userJoined := expect(t, alice, core.TypeUserJoined)
	assert.Equal(t, "Bob", userJoined["displayName"])

	send(t, alice, envelope{"type": "live-speech", "text": "Hello", "isFinal": true})
	lt := expect(t, bob, core.TypeLiveTranslation)
	assert.Equal(t, "Hello", lt["originalText"])
	assert.Equal(t, "[es] Hello", lt["translatedText"])
	assert.Equal(t, "Alice", lt["speakerName"])
	assert.Equal(t, "es", lt["targetLanguage"])

	send(t, bob, envelope{"type": "whoami"})
	me := expect(t, bob, core.TypeWhoAmI)
	assert.Equal(t, "ABC123", me["roomId"])
	assert.Equal(t, "es", me["language"])

	send(t, bob, envelope{"type": "ping"})
	expect(t, bob, core.TypePong)

	require.NoError(t, bob.Close())
	left := expect(t, alice, core.TypeUserLeft)
	assert.Equal(t, "Bob", left["displayName"])

	require.Eventually(t, func() bool { return o.Registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSpeechRateLimitOverWebsocket(t *testing.T) {
	srv, _ := startServer(t, config.RateConfig{Limit: 1, Interval: time.Minute})
	alice := dial(t, srv)

	send(t, alice, envelope{"type": "join-room", "roomId": "R42", "displayName": "Alice", "language": "en"})
	expect(t, alice, core.TypeRoomJoined)

	send(t, alice, envelope{"type": "live-speech", "text": "one"})
	send(t, alice, envelope{"type": "live-speech", "text": "two"})
	errMsg := expect(t, alice, core.TypeError)
	assert.Equal(t, "rate limited", errMsg["message"])
}

func TestBadMessagesAreAnswered(t *testing.T) {
	srv, _ := startServer(t, config.RateConfig{Limit: 30, Interval: 10 * time.Second})
	ws := dial(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "bad payload", expect(t, ws, core.TypeError)["message"])

	send(t, ws, envelope{"type": "teleport"})
	assert.Equal(t, "unknown message type", expect(t, ws, core.TypeError)["message"])

	send(t, ws, envelope{"type": "live-speech", "text": "hello?"})
	assert.Equal(t, "not in a room", expect(t, ws, core.TypeError)["message"])
}

func TestDisconnectDoesNotWaitForTranslation(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := translate.ProviderFunc{ID: "stuck", Fn: func(ctx context.Context, _, _, _ string) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-release:
			return "", context.Canceled
		}
	}}
	srv, _ := startServerWith(t, config.RateConfig{Limit: 30, Interval: 10 * time.Second},
		translate.NewChain(3*time.Second, stuck))
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, envelope{"type": "join-room", "roomId": "R1", "displayName": "Alice", "language": "en"})
	expect(t, alice, core.TypeRoomJoined)
	send(t, bob, envelope{"type": "join-room", "roomId": "R1", "displayName": "Bob", "language": "es"})
	expect(t, bob, core.TypeRoomJoined)

	send(t, alice, envelope{"type": "live-speech", "text": "Hello"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("translation never started")
	}

	start := time.Now()
	require.NoError(t, alice.Close())
	left := expect(t, bob, core.TypeUserLeft)
	assert.Equal(t, "Alice", left["displayName"])
	assert.Less(t, time.Since(start), time.Second)
}
