package daemon

import (
	"context"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/actornet/actornet/broker"
	"github.com/actornet/actornet/config"
	"github.com/actornet/actornet/logger"
	"github.com/actornet/actornet/proxy"
	"github.com/actornet/actornet/routing"
	"github.com/actornet/actornet/transport"
	"github.com/actornet/actornet/version"
)

var prom struct {
	logEntries *prometheus.CounterVec
}

func init() {
	prom.logEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "actornet",
		Subsystem: "daemon",
		Name:      "log_entries",
		Help:      "Number of log entries per level",
	}, []string{"level"})
	prometheus.MustRegister(prom.logEntries)
}

func registerMetrics(registerer prometheus.Registerer) {
	version.PrometheusRegister(registerer)
	for _, register := range []func(prometheus.Registerer) error{
		broker.PrometheusRegister,
		routing.PrometheusRegister,
		proxy.PrometheusRegister,
		transport.PrometheusRegister,
	} {
		if err := register(registerer); err != nil {
			panic(err)
		}
	}
}

func prometheusJobFromConfig(log logger.Logger, in *config.PrometheusMonitoring) (func(context.Context) error, error) {
	if _, _, err := net.SplitHostPort(in.Listen); err != nil {
		return nil, err
	}
	listen := in.Listen
	return func(ctx context.Context) error {
		l, err := net.Listen("tcp", listen)
		if err != nil {
			log.WithError(err).Error("prometheus: cannot listen")
			return err
		}
		go func() {
			<-ctx.Done()
			l.Close()
		}()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		err = http.Serve(l, mux)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("prometheus: error while serving")
			return err
		}
		return nil
	}, nil
}

type prometheusLogOutlet struct{}

var _ logger.Outlet = prometheusLogOutlet{}

func newPrometheusLogOutlet() prometheusLogOutlet {
	return prometheusLogOutlet{}
}

func (o prometheusLogOutlet) WriteEntry(entry logger.Entry) error {
	prom.logEntries.WithLabelValues(entry.Level.String()).Inc()
	return nil
}
