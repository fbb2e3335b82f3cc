// Command statsmon is a minimal stand-in for the visualiser on the other
// end of the debug socket bridge (spec.md §4.8, §6): it dials the bridge's
// WebSocket control channel, decodes the per-world name tables and binary
// stats packets, and re-exposes them as Prometheus gauges.
package main

import (
	"flag"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/fenwicklabs/ticknet/pkg/stats"
)

// worldNames is the per-statIndex field-name table a name-table frame last
// reported, needed to know how many snapshot-stat words and prediction-error
// fields a following binary packet carries (spec.md §4.7: a receiver is
// expected to already know these counts from the most recent name table).
type worldNames struct {
	name   string
	ghosts []string
	errors []string
}

func main() {
	bridgeAddr := flag.String("bridge", "ws://127.0.0.1:8787/debug", "debug bridge WebSocket URL")
	metricsAddr := flag.String("metrics", ":9108", "Prometheus /metrics listen address")
	flag.Parse()

	log := logrus.StandardLogger()

	commandBytes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticknet_statsmon_command_bytes", Help: "Command bytes reported for the most recent tick, per world.",
	}, []string{"world"})
	discardedPackets := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticknet_statsmon_discarded_packets", Help: "Discarded packets reported for the most recent tick, per world.",
	}, []string{"world"})
	ghostCount := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ticknet_statsmon_ghost_types", Help: "Number of ghost-type names in the most recent name table, per world.",
	}, []string{"world"})
	prometheus.MustRegister(commandBytes, discardedPackets, ghostCount)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			log.WithError(err).Fatal("statsmon: metrics http server")
		}
	}()

	conn, _, err := websocket.DefaultDialer.Dial(*bridgeAddr, nil)
	if err != nil {
		log.WithError(err).Fatal("statsmon: dial debug bridge")
	}
	defer conn.Close()

	byIndex := make(map[int32]*worldNames)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Warn("statsmon: bridge connection closed")
			return
		}
		switch msgType {
		case websocket.TextMessage:
			index, name, ghosts, errNames, err := stats.DecodeNameTable(data)
			if err != nil {
				log.WithError(err).Warn("statsmon: decode name table")
				continue
			}
			byIndex[index] = &worldNames{name: name, ghosts: ghosts, errors: errNames}
			ghostCount.WithLabelValues(name).Set(float64(len(ghosts)))
			log.WithFields(logrus.Fields{"world": name, "ghosts": len(ghosts)}).Info("statsmon: name table updated")

		case websocket.BinaryMessage:
			if len(data) < 5 {
				continue
			}
			statIndex := int32(data[4])
			names, known := byIndex[statIndex]
			if !known {
				log.WithField("stat_index", statIndex).Debug("statsmon: binary packet before its name table, dropping")
				continue
			}
			// names.ghosts already carries its implicit leading "Destroy"
			// entry (spec.md §4.7); snapshot_stats is a flat triple array,
			// three words per ghost type.
			snapshotWords := 3 * len(names.ghosts)
			pkt, err := stats.DecodeBinaryPacket(data, snapshotWords, len(names.errors))
			if err != nil {
				log.WithError(err).Warn("statsmon: decode binary packet")
				continue
			}
			commandBytes.WithLabelValues(names.name).Set(float64(pkt.CommandStatsBytes))
			discardedPackets.WithLabelValues(names.name).Set(float64(pkt.DiscardedPackets))
		}
	}
}
