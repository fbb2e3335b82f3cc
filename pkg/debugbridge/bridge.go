// Package debugbridge implements the WebSocket control channel a running
// simulation exposes to an external debugger (spec.md §4.8, Debug Socket
// Bridge / C8): per-connection world bookkeeping, stat_index assignment,
// and draining each attached world's stats.Collector queue onto the socket.
package debugbridge

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/higebu/netfd"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/fenwicklabs/ticknet/pkg/stats"
)

// World is the subset of a physics-world group the bridge needs to expose
// it to a connected debugger. Disposed worlds are dropped from every
// tracked client on the next Update (spec.md §4.8: "If any tracked world
// has been disposed, drop it from the list.").
type World interface {
	Name() string
	Collector() *stats.Collector
	Disposed() bool
}

// upgrader is shared across all accepted connections; CheckOrigin is
// intentionally permissive, matching the teacher's debug-tooling posture of
// a LAN-local operator console rather than a public endpoint.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Bridge accepts debugger WebSocket connections and fans world stats out to
// every connected client, keeping its clients in one map keyed by
// connection id under a single mutex.
type Bridge struct {
	mu      sync.Mutex
	clients map[string]*client
	health  HealthMonitor
	log     *logrus.Logger
}

// HealthMonitor receives the raw file descriptor of a newly accepted debug
// connection, e.g. to attach a pkg/sockhealth monitor to the bridge's own
// control-channel socket (spec.md §4.8 operates over the transport
// sockhealth observes, not the simulated per-connection link).
type HealthMonitor interface {
	Track(fd int, labels []string)
	Untrack(fd int)
}

// client is one connected debugger's bookkeeping.
type client struct {
	id  string
	fd  int
	ws  *websocket.Conn
	mu  sync.Mutex
	out chan []byte

	tracked   map[string]*stats.Collector // world name -> its collector
	nextIndex int32
}

// NewBridge returns a Bridge with no connected clients. health may be nil if
// the deployment does not want OS-level socket telemetry on its debug port.
func NewBridge(health HealthMonitor, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{clients: make(map[string]*client), health: health, log: log}
}

// ServeHTTP upgrades an incoming request to a WebSocket connection and
// registers it as a debug client. It never blocks past the upgrade — the
// write loop and read-side disconnect detection run in a goroutine.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("debugbridge: upgrade failed")
		return
	}

	c := &client{
		id:      xid.New().String(),
		fd:      netfd.GetFdFromConn(conn.UnderlyingConn()),
		ws:      conn,
		out:     make(chan []byte, 64),
		tracked: make(map[string]*stats.Collector),
	}

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()

	if b.health != nil {
		b.health.Track(c.fd, []string{c.id})
	}

	go b.writeLoop(c)
	go b.readLoop(c)
}

// writeLoop drains c.out to the socket until it closes.
func (b *Bridge) writeLoop(c *client) {
	for msg := range c.out {
		frameType := websocket.BinaryMessage
		if len(msg) > 0 && msg[0] == textFrameMarker {
			frameType = websocket.TextMessage
		}
		if len(msg) > 0 {
			msg = msg[1:]
		}
		if err := c.ws.WriteMessage(frameType, msg); err != nil {
			b.log.WithError(err).WithField("client", c.id).Debug("debugbridge: write failed, disconnecting")
			b.disconnect(c)
			return
		}
	}
}

// readLoop exists only to detect the peer closing the connection; the
// protocol has no client-to-server payloads.
func (b *Bridge) readLoop(c *client) {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			b.disconnect(c)
			return
		}
	}
}

// textFrameMarker and binaryFrameMarker are the one-byte prefix every queued
// message carries to tell writeLoop its frame type, since Go channels can't
// carry the frame-type enum directly without wrapping every send in a struct
// allocation. writeLoop strips the prefix before writing.
const (
	textFrameMarker   = 0xFF
	binaryFrameMarker = 0x00
)

// disconnect implements spec.md §4.8's "On disconnect" behaviour: every
// world this client was tracking has its stat_index reset to Unconnected,
// which (per stats.Collector.SetStatIndex) also clears its queue and zeroes
// its bounded buffers.
func (b *Bridge) disconnect(c *client) {
	b.mu.Lock()
	_, present := b.clients[c.id]
	delete(b.clients, c.id)
	b.mu.Unlock()
	if !present {
		return
	}

	c.mu.Lock()
	tracked := c.tracked
	c.tracked = nil
	c.mu.Unlock()

	for _, collector := range tracked {
		collector.SetStatIndex(stats.Unconnected)
	}

	close(c.out)
	if b.health != nil {
		b.health.Untrack(c.fd)
	}
}

// Update implements the per-tick bridge behaviour of spec.md §4.8: assign
// newly visible worlds a stat_index, drop disposed ones, and drain every
// tracked collector's queue onto its client's socket. Call this once per
// frame from the server's after-simulation group.
func (b *Bridge) Update(worlds []World) {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		b.updateClient(c, worlds)
	}
}

func (b *Bridge) updateClient(c *client, worlds []World) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make(map[string]bool, len(worlds))
	for _, w := range worlds {
		live[w.Name()] = true
	}
	for name := range c.tracked {
		if !live[name] {
			delete(c.tracked, name)
		}
	}

	for _, w := range worlds {
		if w.Disposed() {
			delete(c.tracked, w.Name())
			continue
		}
		if _, ok := c.tracked[w.Name()]; !ok {
			c.tracked[w.Name()] = w.Collector()
			w.Collector().SetStatIndex(c.nextIndex)
			c.nextIndex++
		}
		drainCollector(c, w.Collector())
	}
}

// drainCollector forwards every queued packet to c.out, framed for
// writeLoop (spec.md §4.8: "sending isString entries as text frames, others
// as binary frames"). Caller holds c.mu.
func drainCollector(c *client, collector *stats.Collector) {
	for _, p := range collector.Drain() {
		var marker byte = binaryFrameMarker
		if p.IsString {
			marker = textFrameMarker
		}
		msg := make([]byte, 0, len(p.Data)+1)
		msg = append(msg, marker)
		msg = append(msg, p.Data...)
		select {
		case c.out <- msg:
		default:
			// Slow client: drop rather than block the simulation's update
			// loop on a stalled debugger socket.
		}
	}
}

// ClientCount reports the number of currently connected debuggers.
func (b *Bridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}
