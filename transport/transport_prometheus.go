package transport

import "github.com/prometheus/client_golang/prometheus"

var prom struct {
	openConnections prometheus.Gauge
	bytesRead       prometheus.Counter
	bytesWritten    prometheus.Counter
}

func init() {
	prom.openConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "actornet",
		Subsystem: "transport",
		Name:      "open_connections",
		Help:      "Number of connections currently registered with the multiplexer",
	})
	prom.bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "transport",
		Name:      "bytes_read",
		Help:      "Payload and header bytes read off all connections",
	})
	prom.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "transport",
		Name:      "bytes_written",
		Help:      "Bytes queued into connection write buffers",
	})
}

func PrometheusRegister(registry prometheus.Registerer) error {
	if err := registry.Register(prom.openConnections); err != nil {
		return err
	}
	if err := registry.Register(prom.bytesRead); err != nil {
		return err
	}
	return registry.Register(prom.bytesWritten)
}
