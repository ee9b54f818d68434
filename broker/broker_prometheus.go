package broker

import "github.com/prometheus/client_golang/prometheus"

var prom struct {
	framesIn          *prometheus.CounterVec
	framesOut         *prometheus.CounterVec
	framesForwarded   prometheus.Counter
	forwardDropped    prometheus.Counter
	undeliverable     prometheus.Counter
	bouncedRequests   prometheus.Counter
	proxiesCreated    prometheus.Counter
	handshakeFailures prometheus.Counter
	nodesPurged       prometheus.Counter
}

func init() {
	prom.framesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "frames_in",
		Help:      "Protocol frames received, by operation",
	}, []string{"op"})
	prom.framesOut = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "frames_out",
		Help:      "Protocol frames written, by operation",
	}, []string{"op"})
	prom.framesForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "frames_forwarded",
		Help:      "Frames relayed towards a third node",
	})
	prom.forwardDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "forward_dropped",
		Help:      "Frames for a third node dropped for lack of a route",
	})
	prom.undeliverable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "undeliverable_messages",
		Help:      "Messages that could not be delivered to their destination",
	})
	prom.bouncedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "bounced_requests",
		Help:      "Requests answered with a synthetic error reply",
	})
	prom.proxiesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "proxies_created",
		Help:      "Remote actor proxies created",
	})
	prom.handshakeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "handshake_failures",
		Help:      "Handshakes rejected for version or signature mismatch",
	})
	prom.nodesPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "broker",
		Name:      "nodes_purged",
		Help:      "Nodes whose state was purged after losing the route",
	})
}

func PrometheusRegister(registry prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		prom.framesIn, prom.framesOut, prom.framesForwarded,
		prom.forwardDropped, prom.undeliverable, prom.bouncedRequests,
		prom.proxiesCreated, prom.handshakeFailures, prom.nodesPurged,
	} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
