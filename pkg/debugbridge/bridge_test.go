package debugbridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"

	"github.com/fenwicklabs/ticknet/pkg/stats"
)

type fakeWorld struct {
	name      string
	collector *stats.Collector
	disposed  bool
}

func (f *fakeWorld) Name() string                 { return f.name }
func (f *fakeWorld) Collector() *stats.Collector { return f.collector }
func (f *fakeWorld) Disposed() bool               { return f.disposed }

func dialBridge(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBridgeAssignsStatIndexAndForwardsNameTable(t *testing.T) {
	bridge := NewBridge(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(bridge.ServeHTTP))
	defer srv.Close()

	conn := dialBridge(t, srv)

	world := &fakeWorld{name: "arena", collector: stats.NewCollector("arena")}
	world.collector.SetNames([]string{"Player"}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for bridge.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, bridge.ClientCount(), 1)

	bridge.Update([]World{world})
	world.collector.Advance(1) // rollover emits the name table frame.
	bridge.Update([]World{world})

	assert.Equal(t, world.collector.StatIndex(), int32(0))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	assert.NilError(t, err)
	assert.Equal(t, msgType, websocket.TextMessage)
	assert.Assert(t, strings.Contains(string(data), "\"name\":\"arena\""))
}

func TestBridgeDisconnectResetsCollector(t *testing.T) {
	bridge := NewBridge(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(bridge.ServeHTTP))
	defer srv.Close()

	conn := dialBridge(t, srv)
	world := &fakeWorld{name: "arena", collector: stats.NewCollector("arena")}

	deadline := time.Now().Add(2 * time.Second)
	for bridge.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	bridge.Update([]World{world})
	assert.Equal(t, world.collector.StatIndex(), int32(0))

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for bridge.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, world.collector.StatIndex(), stats.Unconnected)
}
