package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"veritas/internal/pipeline"
)

func dial(t *testing.T, srv *httptest.Server, owner string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + ResultsPathPrefix + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_PushesOwnerResults(t *testing.T) {
	hub := NewResultHub(nil, zaptest.NewLogger(t))
	srv := httptest.NewServer(NewHandler(hub, zaptest.NewLogger(t)))
	defer srv.Close()

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hub.OnAnalysisResult(&pipeline.AnalysisResult{
		Success:        true,
		ResultID:       "r1",
		OwnerID:        "alice",
		Filename:       "clip.mp4",
		Classification: pipeline.LabelReal,
		Confidence:     72.5,
		FramesAnalyzed: 20,
		Timestamp:      &ts,
	})

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var msg ResultMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "analysis_result", msg.Type)
	assert.Equal(t, "r1", msg.ResultID)
	assert.Equal(t, pipeline.LabelReal, msg.Classification)
	assert.Equal(t, 72.5, msg.Confidence)
	assert.True(t, ts.Equal(msg.Timestamp))

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's result")
}

func TestHandler_UnregistersOnDisconnect(t *testing.T) {
	hub := NewResultHub(nil, zaptest.NewLogger(t))
	srv := httptest.NewServer(NewHandler(hub, zaptest.NewLogger(t)))
	defer srv.Close()

	conn := dial(t, srv, "carol")
	waitFor(t, func() bool { return hub.HasClients("carol") })

	conn.Close()
	waitFor(t, func() bool { return !hub.HasClients("carol") })
}

func TestHandler_RequiresOwner(t *testing.T) {
	h := NewHandler(NewResultHub(nil, nil), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ResultsPathPrefix, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHub_SubscribesPerConnectedOwner(t *testing.T) {
	bus := pipeline.NewEventBus()
	hub := NewResultHub(bus, zaptest.NewLogger(t))
	srv := httptest.NewServer(NewHandler(hub, zaptest.NewLogger(t)))
	defer srv.Close()
	assert.Zero(t, bus.SubscriberCount())

	first := dial(t, srv, "dave")
	second := dial(t, srv, "dave")
	waitFor(t, func() bool { return hub.ClientCount() == 2 && bus.SubscriberCount() == 1 })

	bus.Publish(&pipeline.AnalysisResult{Success: true, ResultID: "r2", OwnerID: "dave"})
	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg ResultMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "r2", msg.ResultID)
	}

	first.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	assert.Equal(t, 1, bus.SubscriberCount())

	second.Close()
	waitFor(t, func() bool { return bus.SubscriberCount() == 0 })
	assert.False(t, hub.HasClients("dave"))
}

func TestHub_CloseDropsSubscriptions(t *testing.T) {
	bus := pipeline.NewEventBus()
	hub := NewResultHub(bus, zaptest.NewLogger(t))
	srv := httptest.NewServer(NewHandler(hub, zaptest.NewLogger(t)))
	defer srv.Close()

	dial(t, srv, "erin")
	waitFor(t, func() bool { return bus.SubscriberCount() == 1 })

	hub.Close()
	assert.Zero(t, bus.SubscriberCount())
	assert.Zero(t, hub.ClientCount())
}
