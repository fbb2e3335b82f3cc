// Command server is the reference server-side driver wiring the command
// receive pipeline (spec.md §4.5), routing resolver (§4.6), physics build
// scheduler (§4.9), stats collector (§4.7) and debug socket bridge (§4.8)
// into one fixed-tick loop over a UDP command transport.
package main

import (
	"flag"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fenwicklabs/ticknet/internal/moveinput"
	"github.com/fenwicklabs/ticknet/pkg/command"
	"github.com/fenwicklabs/ticknet/pkg/debugbridge"
	"github.com/fenwicklabs/ticknet/pkg/entity"
	"github.com/fenwicklabs/ticknet/pkg/physics"
	"github.com/fenwicklabs/ticknet/pkg/recvpipeline"
	"github.com/fenwicklabs/ticknet/pkg/routing"
	"github.com/fenwicklabs/ticknet/pkg/session"
	"github.com/fenwicklabs/ticknet/pkg/smoother"
	"github.com/fenwicklabs/ticknet/pkg/sockhealth"
	"github.com/fenwicklabs/ticknet/pkg/stats"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// peer is the server's per-connection bookkeeping: the shared session
// state the receive pipeline mutates, this peer's one move-command buffer,
// and the entity it drives in the arena world.
type peer struct {
	conn   *session.Connection
	buf    *command.Buffer[moveinput.Move]
	entity entity.ID
	addr   *net.UDPAddr
}

// datagram is one UDP read handed from the receive goroutine to the tick
// loop for dispatch.
type datagram struct {
	from *net.UDPAddr
	data []byte
}

// arenaWorld adapts a stats.Collector to debugbridge.World; this demo
// never disposes its one world.
type arenaWorld struct {
	name      string
	collector *stats.Collector
}

func (w *arenaWorld) Name() string                { return w.name }
func (w *arenaWorld) Collector() *stats.Collector { return w.collector }
func (w *arenaWorld) Disposed() bool              { return false }

// eulerBackend is a minimal physics.Backend: semi-implicit Euler
// integration of each non-kinematic body by its stored velocity. The real
// solver is out of scope (spec.md §1); this exists so the server has
// something to Step and export every tick.
type eulerBackend struct{}

func (eulerBackend) Step(world *physics.World, dt float32) error {
	for i := 0; i < world.DynamicCount; i++ {
		b := &world.Bodies[i]
		if b.Kinematic {
			continue
		}
		b.Transform.Position[0] += b.Velocity.Linear[0] * dt
		b.Transform.Position[1] += b.Velocity.Linear[1] * dt
		b.Transform.Position[2] += b.Velocity.Linear[2] * dt
	}
	return nil
}

func main() {
	udpAddr := flag.String("udp", ":9000", "UDP listen address for command datagrams")
	debugAddr := flag.String("debug", ":8787", "debug bridge HTTP/WebSocket listen address")
	tickRate := flag.Int("tick-rate", 20, "fixed simulation tick rate in Hz")
	devBuild := flag.Bool("dev", false, "enable physics build/export integrity checks")
	flag.Parse()

	log := logrus.StandardLogger()

	pc, err := net.ListenPacket("udp", *udpAddr)
	if err != nil {
		log.WithError(err).Fatal("server: listen udp")
	}
	defer pc.Close()

	registry := command.NewRegistry()
	moveinput.Register(registry)
	routingTable := routing.NewTable()
	allocator := entity.NewAllocator()
	recvPipe := recvpipeline.NewPipeline(registry, routingTable)
	scheduler := physics.NewScheduler()
	scheduler.DevBuild = *devBuild
	var backend physics.Backend = eulerBackend{}

	collector := stats.NewCollector("arena")
	collector.SetNames([]string{"Player"}, nil)
	world := &arenaWorld{name: "arena", collector: collector}

	healthMonitor := sockhealth.NewMonitor(func(err error) {
		log.WithError(err).Debug("server: debug bridge socket health read failed")
	})
	bridge := debugbridge.NewBridge(healthMonitor, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug", bridge.ServeHTTP)
	go func() {
		if err := http.ListenAndServe(*debugAddr, mux); err != nil {
			log.WithError(err).Fatal("server: debug bridge http server")
		}
	}()

	var mu sync.Mutex
	peers := make(map[string]*peer)
	incoming := make(chan datagram, 256)

	go readLoop(pc, incoming, log)

	interval := time.Second / time.Duration(*tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var serverTick tick.Tick = 1
	prevSample := make(map[entity.ID]smoother.Sample)

	for range ticker.C {
		dispatchPending(incoming, &mu, peers, allocator)

		commandBytes, discarded, dynamics := processConnections(&mu, peers, recvPipe, serverTick, log)

		built := scheduler.Build(dynamics, nil, nil)
		if err := backend.Step(&built, float32(interval.Seconds())); err != nil {
			log.WithError(err).Error("server: physics step")
		}
		if *devBuild {
			if err := scheduler.CheckIntegrity(nil); err != nil {
				log.WithError(err).Fatal("server: physics build/export integrity violation")
			}
		}
		advanceDisplay(built, prevSample, float32(interval.Seconds()))

		collector.AddCommandStats(serverTick, commandBytes)
		// One triple per ghost-name-table entry: the implicit "Destroy"
		// slot first, then "Player" (spec.md §4.7's ghost-name/triple
		// ordering).
		collector.AddSnapshotStats(serverTick, []uint32{0, 0, 0, uint32(len(dynamics)), 0, 0})
		if discarded > 0 {
			collector.AddDiscardedPackets(discarded)
		}
		collector.Advance(serverTick)
		bridge.Update([]debugbridge.World{world})

		serverTick = serverTick.Increment()
		if !serverTick.IsValid() {
			log.Fatal("server: tick counter wrapped onto the invalid sentinel")
		}
	}
}

// readLoop forwards every UDP datagram to incoming until the socket errors.
func readLoop(pc net.PacketConn, incoming chan<- datagram, log *logrus.Logger) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			log.WithError(err).Warn("server: udp read")
			return
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		incoming <- datagram{from: udpAddr, data: cp}
	}
}

// dispatchPending drains whatever datagrams arrived since the last tick,
// allocating a new peer (and entity) on first contact. Each datagram
// replaces its peer's incoming buffer, so only the most recent datagram per
// peer is left for this tick's receive pass.
func dispatchPending(incoming <-chan datagram, mu *sync.Mutex, peers map[string]*peer, allocator *entity.Allocator) {
	for {
		select {
		case dg := <-incoming:
			mu.Lock()
			key := dg.from.String()
			p, ok := peers[key]
			if !ok {
				id := allocator.Alloc()
				p = &peer{
					conn:   session.NewConnection(session.NetworkID(id)),
					buf:    command.NewBuffer[moveinput.Move](),
					entity: id,
					addr:   dg.from,
				}
				p.conn.Target = session.CommandTarget{TargetEntity: id, Set: true}
				peers[key] = p
			}
			p.conn.Incoming = append(p.conn.Incoming[:0], dg.data...)
			mu.Unlock()
		default:
			return
		}
	}
}

// processConnections runs the receive pipeline and EWMA update for every
// peer, then builds this tick's dynamic-body input from each peer's latest
// buffered move command (spec.md §4.5, §4.9).
func processConnections(
	mu *sync.Mutex,
	peers map[string]*peer,
	recvPipe *recvpipeline.Pipeline,
	serverTick tick.Tick,
	log *logrus.Logger,
) (commandBytes uint32, discarded int, dynamics []physics.DynamicInput) {
	mu.Lock()
	defer mu.Unlock()

	dynamics = make([]physics.DynamicInput, 0, len(peers))
	for _, p := range peers {
		if len(p.conn.Incoming) > 0 {
			commandBytes += uint32(len(p.conn.Incoming))
			result, err := recvPipe.ProcessDatagram(p.conn, serverTick, p.lookup)
			if err != nil {
				log.WithError(err).WithField("peer", p.addr.String()).Debug("server: process datagram")
			}
			discarded += result.Discarded
		}
		recvpipeline.UpdateCommandAge(p.conn, serverTick)

		var vel physics.MotionVelocity
		if move, ok := p.buf.GetAt(serverTick); ok {
			vel = physics.MotionVelocity{Linear: physics.Vec3{float32(move.DX) / 100, float32(move.DY) / 100, 0}}
		}
		dynamics = append(dynamics, physics.DynamicInput{
			Entity:   p.entity,
			Source:   physics.TransformSource{LocalTransform: physics.Transform{Rotation: physics.IdentityQuat}, UniformScale: 1},
			Velocity: vel,
			Mass:     &physics.BodyMass{InverseMass: 1},
			Simulate: true,
		})
	}
	return commandBytes, discarded, dynamics
}

// lookup implements recvpipeline.BufferLookup for a single-entity peer.
func (p *peer) lookup(target entity.ID) (command.AnyBuffer, recvpipeline.InterpolationDelayTarget, bool) {
	if target != p.entity {
		return nil, nil, false
	}
	return p.buf, nil, true
}

// advanceDisplay feeds every dynamic body's fresh pose through the
// graphical smoother so a render loop would have something to extrapolate
// from on the next frame (spec.md §4.10).
func advanceDisplay(built physics.World, prevSample map[entity.ID]smoother.Sample, dt float32) {
	for i := 0; i < built.DynamicCount; i++ {
		b := built.Bodies[i]
		current := smoother.Sample{Transform: b.Transform, Velocity: b.Velocity}
		prev, ok := prevSample[b.Entity]
		if !ok {
			prev = current
		}
		smoother.Smooth(smoother.Extrapolate, prev, current, 1, dt)
		prevSample[b.Entity] = current
	}
}
