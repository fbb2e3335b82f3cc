// Command client is the reference client-side driver for the command send
// pipeline (spec.md §4.4): once per fixed tick it gathers a synthetic move
// intent, buffers it, and ships a datagram to the server over UDP.
package main

import (
	"flag"
	"math"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fenwicklabs/ticknet/internal/moveinput"
	"github.com/fenwicklabs/ticknet/pkg/command"
	"github.com/fenwicklabs/ticknet/pkg/sendpipeline"
	"github.com/fenwicklabs/ticknet/pkg/session"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

func main() {
	addr := flag.String("server", "127.0.0.1:9000", "server UDP address")
	tickRate := flag.Int("tick-rate", 20, "fixed send tick rate in Hz")
	mtu := flag.Int("mtu", 1200, "datagram MTU budget")
	flag.Parse()

	log := logrus.StandardLogger()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.WithError(err).Fatal("client: dial server")
	}
	defer conn.Close()

	sessionConn := session.NewConnection(1)
	sessionConn.Target = session.CommandTarget{TargetEntity: 1, Set: true}

	buf := command.NewBuffer[moveinput.Move]()
	pipeline := &sendpipeline.Pipeline[moveinput.Move]{
		Hash:              moveinput.Hash,
		Codec:             moveinput.Codec(),
		MTU:               *mtu,
		MaxHeaderOverhead: 48,
	}
	targets := []sendpipeline.Target[moveinput.Move]{{ID: 1, Buffer: buf, Auto: false}}

	interval := time.Second / time.Duration(*tickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var currentTick tick.Tick = 1
	for range ticker.C {
		move := moveinput.Move{At: currentTick, DX: synthDX(currentTick), DY: synthDY(currentTick)}
		buf.Add(currentTick, move)

		result, skipped := pipeline.BuildDatagram(sessionConn, targets, currentTick, sendpipeline.TickContext{
			ServerTick:        currentTick,
			InterpolationTick: currentTick.Decrement(),
		})
		if !skipped {
			if _, err := conn.Write(result.Datagram); err != nil {
				log.WithError(err).Warn("client: send datagram")
			} else {
				log.WithFields(logrus.Fields{
					"tick":       currentTick,
					"bytes":      len(result.Datagram),
					"fragmented": result.Fragmented,
					"entities":   result.EntitiesSent,
				}).Debug("client: sent command datagram")
			}
		}

		currentTick = currentTick.Increment()
		if !currentTick.IsValid() {
			log.Warn("client: tick counter wrapped onto the invalid sentinel, exiting")
			os.Exit(0)
		}
	}
}

// synthDX/synthDY generate a deterministic circular move intent so the
// reference client exercises the pipeline without needing real input
// devices wired up.
func synthDX(t tick.Tick) int16 {
	return int16(100 * math.Sin(float64(t)/10))
}

func synthDY(t tick.Tick) int16 {
	return int16(100 * math.Cos(float64(t)/10))
}
